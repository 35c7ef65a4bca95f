package service

import (
	"errors"
	"fmt"

	"github.com/trojan-ui/trojan-ui/logger"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrDuplicate          = errors.New("already exists")
	ErrCapacityExceeded   = errors.New("user limit reached")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrCredentialMismatch never leaves the subscription gate.
	ErrCredentialMismatch = errors.New("credential mismatch")
	ErrStoreFailure       = errors.New("store failure")
)

// storeFailure logs the underlying error and hides it behind ErrStoreFailure.
func storeFailure(op string, err error) error {
	logger.Errorf("%s: %v", op, err)
	return fmt.Errorf("%w: %s", ErrStoreFailure, op)
}
