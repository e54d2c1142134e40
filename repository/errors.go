package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateEmail is returned when the personas.email UNIQUE constraint rejects a write.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound wraps gorm.ErrRecordNotFound so either can be matched with errors.Is.
	ErrNotFound = fmt.Errorf("record not found: %w", gorm.ErrRecordNotFound)
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
