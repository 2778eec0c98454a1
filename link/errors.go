package link

import (
	"errors"
	"fmt"
)

// ConnectError indicates a failure to establish the initial connection
// to the debug stub. Fatal to session start.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot connect to debug stub at %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// LinkError indicates an exchange failure on an established link.
// Transient errors are retried by the caller; Fatal means the link
// exhausted its reconnect budget and the session should give up.
type LinkError struct {
	Op    string
	Err   error
	Fatal bool
}

func (e *LinkError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("link %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a fatal link error.
func IsFatal(err error) bool {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Fatal
	}
	var connErr *ConnectError
	return errors.As(err, &connErr)
}
