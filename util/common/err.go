package common

import (
	"errors"
	"fmt"

	"github.com/trojan-ui/trojan-ui/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Recover must be deferred directly; it logs the panic value under msg.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}

// Combine joins the non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}
