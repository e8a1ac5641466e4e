package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/model"
	"gestionlearn.com/internal/testutil"
)

func newManager(now *time.Time) *TokenManager {
	return NewTokenManager(config.JWTConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}).WithClock(func() time.Time { return *now })
}

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	m := newManager(&now)
	dept := uint(3)
	user := &model.User{ID: 42, Role: model.RoleLeadTrainer, DepartmentID: &dept}

	token, exp, err := m.IssueAccess(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	claims, err := m.ParseAccess(token)
	require.NoError(t, err)
	p := claims.Principal()
	assert.Equal(t, uint(42), p.ID)
	assert.Equal(t, model.RoleLeadTrainer, p.Role)
	assert.True(t, p.InDepartment(3))
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	now = now.Add(16 * time.Minute)
	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RefreshIsDistinct(t *testing.T) {
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	m := newManager(&now)
	user := &model.User{ID: 7, Role: model.RoleStudent}

	r1, exp, err := m.IssueRefresh(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), exp)
	r2, _, err := m.IssueRefresh(user)
	require.NoError(t, err)

	c1, err := m.ParseRefresh(r1)
	require.NoError(t, err)
	c2, err := m.ParseRefresh(r2)
	require.NoError(t, err)
	assert.Equal(t, uint(7), c1.UserID)
	assert.NotEqual(t, c1.ID, c2.ID, "each session has its own id")

	_, err = m.ParseAccess(r1)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	now := time.Now()
	m := newManager(&now)

	_, err := m.ParseAccess("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  1,
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseAccess(none)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 1}).SignedString([]byte("access"))
	require.NoError(t, err)
	_, err = m.ParseAccess(noExp)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestInitCasbin_RoleRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	e, err := InitCasbin(db)
	require.NoError(t, err)

	cases := []struct {
		role   model.Role
		path   string
		method string
		allow  bool
	}{
		{model.RoleStudent, "/api/hours/me", "GET", true},
		{model.RoleStudent, "/api/hours", "POST", false},
		{model.RoleStudent, "/api/courses/3", "GET", true},
		{model.RoleStudent, "/api/users/3/password", "PATCH", true},
		{model.RoleTrainer, "/api/hours", "POST", true},
		{model.RoleTrainer, "/api/hours/9", "DELETE", true},
		{model.RoleTrainer, "/api/courses", "POST", false},
		{model.RoleTrainer, "/api/users/teachers", "GET", false},
		{model.RoleLeadTrainer, "/api/users/teachers", "GET", true},
		{model.RoleLeadTrainer, "/api/users", "GET", false},
		{model.RoleLeadTrainer, "/api/courses/2/students", "PATCH", true},
		{model.RoleHR, "/api/users", "POST", true},
		{model.RoleHR, "/api/users/5/activate", "PATCH", true},
		{model.RoleHR, "/api/courses", "POST", false},
		{model.RoleHR, "/api/departments", "POST", false},
		{model.RoleAdmin, "/api/departments/1", "DELETE", true},
		{model.RoleAdmin, "/api/courses/1", "PUT", false},
	}
	for _, tc := range cases {
		ok, err := e.Enforce(string(tc.role), tc.path, tc.method)
		require.NoError(t, err)
		assert.Equal(t, tc.allow, ok, "%s %s %s", tc.role, tc.method, tc.path)
	}

	// Seeding happens once.
	again, err := InitCasbin(db)
	require.NoError(t, err)
	policies, err := again.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, len(DefaultPolicies))
}
