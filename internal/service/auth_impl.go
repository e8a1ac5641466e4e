package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"gorm.io/gorm"

	"gestionlearn.com/internal/auth"
	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/event"
	"gestionlearn.com/internal/model"
)

// AuthServiceImpl 实现 domain.AuthService 接口
type AuthServiceImpl struct {
	db       *gorm.DB
	tokens   *auth.TokenManager
	sessions domain.SessionStore
	mailer   domain.Mailer
	events   event.Publisher
	resetTTL time.Duration
	now      func() time.Time
}

var _ domain.AuthService = (*AuthServiceImpl)(nil)

func NewAuthService(
	db *gorm.DB,
	tokens *auth.TokenManager,
	sessions domain.SessionStore,
	mailer domain.Mailer,
	events event.Publisher,
	resetTTL time.Duration,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		db:       db,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		events:   events,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for reset code expiry.
func (s *AuthServiceImpl) WithClock(now func() time.Time) *AuthServiceImpl {
	s.now = now
	return s
}

func (s *AuthServiceImpl) findByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Preload("Department").Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.Session, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewInvalidCredentialsError()
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}
	if !user.IsActive || !matchSecret(user.Password, password) {
		return nil, domain.NewInvalidCredentialsError()
	}

	access, accessExp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}

	log.Printf("AuthService: user %d logged in", user.ID)
	return &domain.Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, domain.NewUnauthorizedError(domain.CodeRefreshRequired, "Refresh token required")
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return "", time.Time{}, domain.NewSessionExpiredError()
		}
		return "", time.Time{}, domain.NewInvalidSessionError()
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", time.Time{}, domain.NewInternalError("failed to check session", err)
	}
	if revoked {
		return "", time.Time{}, domain.NewInvalidSessionError()
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, domain.NewInvalidSessionError()
		}
		return "", time.Time{}, domain.NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		return "", time.Time{}, domain.NewInvalidSessionError()
	}

	token, exp, err := s.tokens.IssueAccess(&user)
	if err != nil {
		return "", time.Time{}, domain.NewInternalError("failed to issue token", err)
	}
	return token, exp, nil
}

// Logout revokes the refresh session. Unreadable or expired tokens have
// nothing to revoke, so they are not an error.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.sessions.Revoke(ctx, claims.ID, ttl); err != nil {
		return domain.NewInternalError("failed to revoke session", err)
	}
	log.Printf("AuthService: user %d logged out", claims.UserID)
	return nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Preload("Department").First(&user, userID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError("failed to load user", err)
	}
	if err != nil || !user.IsActive {
		return nil, domain.NewUnauthorizedError(domain.CodeInvalidUser, "User not found or inactive")
	}
	return &user, nil
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *AuthServiceImpl) IssueResetCode(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("AuthService: reset requested for unknown email")
			return nil
		}
		return domain.NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		log.Printf("AuthService: reset requested for inactive user %d", user.ID)
		return nil
	}

	code, err := generateResetCode()
	if err != nil {
		return domain.NewInternalError("failed to generate code", err)
	}
	hash, err := hashSecret(code)
	if err != nil {
		return domain.NewInternalError("failed to hash code", err)
	}
	expiry := s.now().Add(s.resetTTL)

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"reset_code_hash":   hash,
		"reset_code_expiry": expiry,
	}).Error; err != nil {
		return domain.NewInternalError("failed to store reset code", err)
	}

	minutes := int(s.resetTTL.Minutes())
	msg := domain.MailMessage{
		To:      user.Email,
		Subject: "Password reset code",
		Text:    fmt.Sprintf("Hello %s,\n\nYour password reset code is %s. It expires in %d minutes.\n", user.Name, code, minutes),
		HTML:    fmt.Sprintf("<p>Hello %s,</p><p>Your password reset code is <strong>%s</strong>. It expires in %d minutes.</p>", user.Name, code, minutes),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Printf("AuthService: failed to send reset code to user %d: %v", user.ID, err)
	}
	return nil
}

func (s *AuthServiceImpl) ConsumeResetCode(ctx context.Context, email, code, newPassword string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewInvalidResetCodeError()
		}
		return domain.NewInternalError("failed to load user", err)
	}
	if user.ResetCodeHash == nil || user.ResetCodeExpiry == nil {
		return domain.NewInvalidResetCodeError()
	}
	if s.now().After(*user.ResetCodeExpiry) || !matchSecret(*user.ResetCodeHash, code) {
		return domain.NewInvalidResetCodeError()
	}

	hash, err := hashSecret(newPassword)
	if err != nil {
		return domain.NewInternalError("failed to hash password", err)
	}

	// Conditional on the stored hash so a code can only be used once.
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND reset_code_hash = ?", user.ID, *user.ResetCodeHash).
		Updates(map[string]interface{}{
			"password":          hash,
			"reset_code_hash":   nil,
			"reset_code_expiry": nil,
		})
	if res.Error != nil {
		return domain.NewInternalError("failed to reset password", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewInvalidResetCodeError()
	}

	log.Printf("AuthService: password reset for user %d", user.ID)
	emit(s.events, event.Event{
		Type:    constants.EventPasswordReset,
		Source:  "AuthService",
		ActorID: user.ID,
		Data:    map[string]interface{}{"userId": user.ID},
		UserIDs: []uint{user.ID},
	})
	return nil
}

func (s *AuthServiceImpl) PurgeExpiredResetCodes(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("reset_code_expiry IS NOT NULL AND reset_code_expiry < ?", s.now()).
		Updates(map[string]interface{}{
			"reset_code_hash":   nil,
			"reset_code_expiry": nil,
		})
	if res.Error != nil {
		return 0, domain.NewInternalError("failed to purge reset codes", res.Error)
	}
	return res.RowsAffected, nil
}
