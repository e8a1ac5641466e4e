package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionlearn.com/internal/auth"
	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/infra"
	"gestionlearn.com/internal/model"
	"gestionlearn.com/internal/testutil"
)

type authFixture struct {
	*school
	svc    *AuthServiceImpl
	tokens *auth.TokenManager
	mailer *infra.LogMailer
	mr     *miniredis.Miniredis
	now    time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	s := newSchool(t)
	rdb, mr := testutil.NewRedis(t)
	f := &authFixture{school: s, mailer: infra.NewLogMailer(), mr: mr, now: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.tokens = auth.NewTokenManager(config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}).WithClock(clock)
	f.svc = NewAuthService(s.db, f.tokens, infra.NewRedisSessionStore(rdb), f.mailer, s.events, 15*time.Minute).WithClock(clock)
	return f
}

var resetCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (f *authFixture) lastCode(t *testing.T) string {
	t.Helper()
	sent := f.mailer.Sent()
	require.NotEmpty(t, sent)
	m := resetCodePattern.FindStringSubmatch(sent[len(sent)-1].Text)
	require.Len(t, m, 2)
	return m[1]
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Authenticate(ctx, "  Trainer.A@School.test ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, f.trainerA.ID, session.User.ID)
	require.NotNil(t, session.User.Department)
	assert.Equal(t, "Informatique", session.User.Department.Name)
	assert.Equal(t, f.now.Add(15*time.Minute), session.AccessExpiresAt)

	claims, err := f.tokens.ParseAccess(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.as(f.trainerA), claims.Principal())

	_, err = f.tokens.ParseRefresh(session.AccessToken)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid), "access token must not pass as refresh")
}

func TestAuthenticate_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&f.student2).Update("is_active", false).Error)

	cases := map[string][2]string{
		"wrong password": {"trainer.a@school.test", "wrong"},
		"unknown email":  {"ghost@school.test", testPassword},
		"inactive user":  {"student2@school.test", testPassword},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			session, err := f.svc.Authenticate(ctx, c[0], c[1])
			assert.Nil(t, session)
			assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Authenticate(ctx, "lead.a@school.test", testPassword)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	token, exp, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(15*time.Minute), exp)
	claims, err := f.tokens.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, f.leadA.ID, claims.UserID)

	require.NoError(t, f.svc.Logout(ctx, session.RefreshToken))
	_, _, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrInvalidSession))

	// Logging out twice or with garbage is harmless.
	assert.NoError(t, f.svc.Logout(ctx, session.RefreshToken))
	assert.NoError(t, f.svc.Logout(ctx, "garbage"))
	assert.NoError(t, f.svc.Logout(ctx, ""))
}

func TestRefresh_Errors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Refresh(ctx, "")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeRefreshRequired, appErr.Reason)

	_, _, err = f.svc.Refresh(ctx, "not-a-token")
	assert.True(t, errors.Is(err, domain.ErrInvalidSession))

	session, err := f.svc.Authenticate(ctx, "hr@school.test", testPassword)
	require.NoError(t, err)

	// Deactivation takes effect at the next refresh.
	require.NoError(t, f.db.Model(&f.hr).Update("is_active", false).Error)
	_, _, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrInvalidSession))

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, _, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrSessionExpired))
}

func TestLogout_RevocationExpiresWithToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Authenticate(ctx, "admin@school.test", testPassword)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, session.RefreshToken))

	keys := f.mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], constants.RedisKeyRevokedSession)
	assert.Equal(t, 7*24*time.Hour, f.mr.TTL(keys[0]))
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Me(ctx, f.student1.ID)
	require.NoError(t, err)
	assert.Equal(t, "student1@school.test", user.Email)

	require.NoError(t, f.db.Model(&f.student1).Update("is_active", false).Error)
	_, err = f.svc.Me(ctx, f.student1.ID)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidUser, appErr.Reason)

	_, err = f.svc.Me(ctx, 9999)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestResetCode_Flow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueResetCode(ctx, "trainer.b@school.test"))
	code := f.lastCode(t)
	assert.Equal(t, "trainer.b@school.test", f.mailer.Sent()[0].To)

	err := f.svc.ConsumeResetCode(ctx, "trainer.b@school.test", "000000x", "newpass1")
	assert.True(t, errors.Is(err, domain.ErrInvalidResetCode))

	require.NoError(t, f.svc.ConsumeResetCode(ctx, "trainer.b@school.test", code, "newpass1"))
	assert.Contains(t, f.events.types(), constants.EventPasswordReset)

	// Single use.
	err = f.svc.ConsumeResetCode(ctx, "trainer.b@school.test", code, "another1")
	assert.True(t, errors.Is(err, domain.ErrInvalidResetCode))

	_, err = f.svc.Authenticate(ctx, "trainer.b@school.test", testPassword)
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
	_, err = f.svc.Authenticate(ctx, "trainer.b@school.test", "newpass1")
	assert.NoError(t, err)
}

func TestResetCode_Expires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueResetCode(ctx, "student1@school.test"))
	code := f.lastCode(t)

	f.now = f.now.Add(15*time.Minute + time.Second)
	err := f.svc.ConsumeResetCode(ctx, "student1@school.test", code, "newpass1")
	assert.True(t, errors.Is(err, domain.ErrInvalidResetCode))

	_, err = f.svc.Authenticate(ctx, "student1@school.test", testPassword)
	assert.NoError(t, err, "password unchanged")
}

func TestResetCode_ReissueInvalidatesPrevious(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueResetCode(ctx, "student1@school.test"))
	first := f.lastCode(t)
	require.NoError(t, f.svc.IssueResetCode(ctx, "student1@school.test"))
	second := f.lastCode(t)

	if first != second {
		err := f.svc.ConsumeResetCode(ctx, "student1@school.test", first, "newpass1")
		assert.True(t, errors.Is(err, domain.ErrInvalidResetCode))
	}
	assert.NoError(t, f.svc.ConsumeResetCode(ctx, "student1@school.test", second, "newpass1"))
}

func TestResetCode_SilentForUnknownAndInactive(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&f.student2).Update("is_active", false).Error)

	assert.NoError(t, f.svc.IssueResetCode(ctx, "ghost@school.test"))
	assert.NoError(t, f.svc.IssueResetCode(ctx, "student2@school.test"))
	assert.Empty(t, f.mailer.Sent())

	err := f.svc.ConsumeResetCode(ctx, "ghost@school.test", "123456", "newpass1")
	assert.True(t, errors.Is(err, domain.ErrInvalidResetCode))
}

func TestPurgeExpiredResetCodes(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueResetCode(ctx, "student1@school.test"))
	f.now = f.now.Add(10 * time.Minute)
	require.NoError(t, f.svc.IssueResetCode(ctx, "student2@school.test"))

	f.now = f.now.Add(10 * time.Minute)
	n, err := f.svc.PurgeExpiredResetCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var purged, pending model.User
	require.NoError(t, f.db.First(&purged, f.student1.ID).Error)
	require.NoError(t, f.db.First(&pending, f.student2.ID).Error)
	assert.Nil(t, purged.ResetCodeHash)
	assert.Nil(t, purged.ResetCodeExpiry)
	assert.NotNil(t, pending.ResetCodeHash)
}
