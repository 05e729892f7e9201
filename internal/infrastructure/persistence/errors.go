package persistence

import (
	"errors"
	"strings"

	"github.com/storefront/inventory/internal/domain/shared"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether err comes from a unique constraint.
// TranslateError covers postgres; the message check covers drivers that do not translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// notFound maps gorm.ErrRecordNotFound to the domain error
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
