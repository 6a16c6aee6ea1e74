package callback

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates the listener configuration is invalid.
	ErrInvalidConfiguration = errors.New("callback: invalid configuration")

	// ErrNotLoopback indicates the requested address is not a loopback address.
	ErrNotLoopback = errors.New("callback: address is not a loopback address")

	// ErrBind indicates the listener could not bind its address.
	ErrBind = errors.New("callback: failed to bind listener")
)

// BindError is returned by Start when the address cannot be bound,
// typically because another process already holds the port.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("callback: failed to bind %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying network error.
func (e *BindError) Unwrap() error {
	return e.Err
}

// Is matches ErrBind.
func (e *BindError) Is(target error) bool {
	return target == ErrBind
}
