package logerr

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the logger can report.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupported
	KindInvalidArgument
	KindConfig
	KindConnect
	KindDriver
	KindTimeout
	KindLogic
)

// Base error types
var (
	// ErrUnsupported is returned for a backend or dialect feature that is not available
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidArgument is returned for out-of-range sizes and unknown filter operators
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfig is returned when a logger configuration fails validation
	ErrConfig = errors.New("invalid configuration")

	// ErrConnect is returned when a backend cannot open or keep its connection
	ErrConnect = errors.New("connection failure")

	// ErrDriver is returned when the database driver rejects a statement
	ErrDriver = errors.New("driver failure")

	// ErrTimeout is returned when a bounded wait expires
	ErrTimeout = errors.New("timeout")

	// ErrLogic is returned for internal inconsistencies such as a foreign key on an undeclared field
	ErrLogic = errors.New("logic error")
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConfig:
		return "config"
	case KindConnect:
		return "connect"
	case KindDriver:
		return "driver"
	case KindTimeout:
		return "timeout"
	case KindLogic:
		return "logic"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupported:
		return ErrUnsupported
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindConfig:
		return ErrConfig
	case KindConnect:
		return ErrConnect
	case KindDriver:
		return ErrDriver
	case KindTimeout:
		return ErrTimeout
	case KindLogic:
		return ErrLogic
	default:
		return nil
	}
}

// Error carries the failing operation and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDriver) and friends match on Kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// LogFields returns key/value pairs for structured logging
func (e *Error) LogFields() map[string]interface{} {
	fields := map[string]interface{}{
		"kind": e.Kind.String(),
		"op":   e.Op,
	}
	if e.Err != nil {
		fields["cause"] = e.Err.Error()
	}
	return fields
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of err, or KindUnknown when err was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindUnsupported, KindInvalidArgument, KindConfig, KindConnect, KindDriver, KindTimeout, KindLogic} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}
