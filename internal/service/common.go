package service

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/event"
)

// BcryptCost is the work factor for password and reset code hashes.
var BcryptCost = bcrypt.DefaultCost

func hashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func matchSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lookupError maps a failed single-row lookup to NotFound or Internal.
func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(what + " not found")
	}
	return domain.NewInternalError("failed to load "+strings.ToLower(what), err)
}

// writeError maps a failed insert or update; unique violations become conflicts.
func writeError(err error, what, conflictMsg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflictError(conflictMsg)
	}
	return domain.NewInternalError("failed to save "+what, err)
}

// exists reports whether any row of m matches the condition.
func exists(tx *gorm.DB, m interface{}, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := tx.Model(m).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func emit(pub event.Publisher, e event.Event) {
	if pub != nil {
		pub.Publish(e)
	}
}
