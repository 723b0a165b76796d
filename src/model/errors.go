package model

import (
	"errors"
	"strings"
)

// Domain errors surfaced by the model layer. Handlers translate these to HTTP
// statuses; low-level driver errors (e.g. UNIQUE constraint failures) are
// converted here so nothing above this layer matches on driver strings.
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("caller has no role on this account")
	ErrNotOwner  = errors.New("operation requires the owner role")
	ErrDuplicate = errors.New("duplicate record")
)

// modernc.org/sqlite reports constraint failures in the error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
