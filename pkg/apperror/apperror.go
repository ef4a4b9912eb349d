package apperror

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindInvalidState Kind = "invalid_state"
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error carries a taxonomy kind plus enough context for the caller to act on it.
type Error struct {
	Kind          Kind
	Op            string
	Message       string
	CurrentStatus string
	Fields        map[string]string
	Context       map[string]string
	Err           error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.CurrentStatus != "" {
		fmt.Fprintf(&b, " (current status: %s)", e.CurrentStatus)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

func Validation(op, message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message, Fields: fields}
}

func InvalidState(op, message, currentStatus string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: message, CurrentStatus: currentStatus}
}

func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: "temporarily unavailable, retry later", Err: err}
}

func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool   { return err != nil && KindOf(err) == KindValidation }
func IsInvalidState(err error) bool { return err != nil && KindOf(err) == KindInvalidState }
func IsNotFound(err error) bool     { return err != nil && KindOf(err) == KindNotFound }
func IsTransient(err error) bool    { return err != nil && KindOf(err) == KindTransient }

// WithContext attaches diagnostic key/values (agreement id, attempted
// transition) without changing the kind. Errors outside the taxonomy become
// internal errors.
func WithContext(err error, kv ...string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal("", err)
	} else {
		copied := *appErr
		appErr = &copied
	}
	ctx := make(map[string]string, len(appErr.Context)+len(kv)/2)
	for k, v := range appErr.Context {
		ctx[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		ctx[kv[i]] = kv[i+1]
	}
	appErr.Context = ctx
	return appErr
}

// FromPersistence classifies a storage error. Errors already in the taxonomy
// pass through untouched.
func FromPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if isTransient(err) {
		return Transient(op, err)
	}
	return Internal(op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
