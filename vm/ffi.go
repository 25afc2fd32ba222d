package vm

import (
	"errors"
	"fmt"
	"syscall"
)

// ForeignError is a recoverable failure reported by a foreign call: an
// inspectable code plus a message.
type ForeignError struct {
	Code    int
	Message string
}

func (e *ForeignError) Error() string {
	return fmt.Sprintf("foreign call failed (%d): %s", e.Code, e.Message)
}

// AsForeignError converts err to a ForeignError. System errors keep their
// errno as the code; anything else gets code -1. A nil err yields nil.
func AsForeignError(err error) *ForeignError {
	if err == nil {
		return nil
	}
	var fe *ForeignError
	if errors.As(err, &fe) {
		return fe
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &ForeignError{Code: int(errno), Message: errno.Error()}
	}
	return &ForeignError{Code: -1, Message: err.Error()}
}
