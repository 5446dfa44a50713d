// Package errors classifies the failures the plug-in framework's core
// can raise, matching spec.md §7's error kinds, while keeping the
// teacher's AppError chaining style (wrap, detail, stack, chain).
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies a framework error, per spec.md §7.
type Kind string

const (
	// KindResourceExhaustion is raised on any allocation failure.
	KindResourceExhaustion Kind = "resource_exhaustion"
	// KindUnknown is raised when an id lookup fails.
	KindUnknown Kind = "unknown"
	// KindIO is raised when a directory scan fails.
	KindIO Kind = "io"
	// KindMalformed is raised when the descriptor parser reports a bad descriptor.
	KindMalformed Kind = "malformed"
	// KindConflict is raised on a duplicate plug-in id or extension-point global id.
	KindConflict Kind = "conflict"
	// KindDependency is raised for a missing or version-mismatched non-optional import.
	KindDependency Kind = "dependency"
	// KindRuntime is raised when a runtime library fails to open, a
	// required symbol is missing, or a start callback fails.
	KindRuntime Kind = "runtime"
	// KindInvalidInvocation is raised when an operation is called from
	// inside a start/stop callback that forbids it.
	KindInvalidInvocation Kind = "invalid_invocation"
)

// Error is a structured framework error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Inner   error
	Stack   []string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Inner != nil {
		return e.Inner.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the inner error, so errors.Is/As see through wrapping.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Code: string(kind)}
}

// FromError converts any error into an *Error, classifying it Unknown
// unless it already is one.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Inner: err}
}

// Wrap attaches a message to err, preserving its kind if it has one.
func Wrap(err error, message string) *Error {
	return FromError(err).WithMessage(message)
}

// WrapWithKind wraps err, forcing a specific kind.
func WrapWithKind(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Inner: err, Code: string(kind)}
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithInnerError(err error) *Error {
	e.Inner = err
	return e
}

func (e *Error) WithStack() *Error {
	e.Stack = captureStack(3)
	return e
}

// Constructors for the spec's error kinds.

func NewResourceExhaustion(message string) *Error { return New(KindResourceExhaustion, message) }

func NewUnknown(id string) *Error {
	return New(KindUnknown, fmt.Sprintf("unknown identifier %q", id)).WithDetail("id", id)
}

func NewIO(message string) *Error { return New(KindIO, message) }

func NewMalformed(pluginID, reason string) *Error {
	return New(KindMalformed, fmt.Sprintf("malformed descriptor for %q: %s", pluginID, reason)).
		WithDetail("plugin", pluginID)
}

func NewConflict(id string) *Error {
	return New(KindConflict, fmt.Sprintf("%q already registered", id)).WithDetail("id", id)
}

func NewDependency(pluginID, targetID, reason string) *Error {
	return New(KindDependency, fmt.Sprintf("%s: import of %s failed: %s", pluginID, targetID, reason)).
		WithDetail("plugin", pluginID).
		WithDetail("target", targetID)
}

func NewRuntime(pluginID, message string) *Error {
	return New(KindRuntime, fmt.Sprintf("%s: %s", pluginID, message)).WithDetail("plugin", pluginID)
}

func NewInvalidInvocation(operation string) *Error {
	return New(KindInvalidInvocation, fmt.Sprintf("%s may not be called from inside a start/stop callback", operation)).
		WithDetail("operation", operation)
}

// captureStack captures the call stack starting skip frames up.
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, name))
	}
	return stack
}

// Chain collects multiple errors, e.g. the per-plug-in failures of a
// directory scan that continues past any one plug-in's IO error.
type Chain struct {
	errors []*Error
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) Add(err *Error) *Chain {
	if err != nil {
		c.errors = append(c.errors, err)
	}
	return c
}

func (c *Chain) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *Chain) Error() string {
	msgs := make([]string, len(c.errors))
	for i, e := range c.errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, " | ")
}

func (c *Chain) Errors() []*Error {
	return c.errors
}

func (c *Chain) HasKind(kind Kind) bool {
	for _, e := range c.errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Recover converts a panic (if any is in flight) into an *Error of kind
// Runtime. Used around a plug-in's start/stop callback, which is
// arbitrary user code the core cannot trust not to panic.
func Recover(pluginID string) (err error) {
	if r := recover(); r != nil {
		var inner error
		switch v := r.(type) {
		case error:
			inner = v
		case string:
			inner = errors.New(v)
		default:
			inner = fmt.Errorf("%v", v)
		}
		err = WrapWithKind(inner, KindRuntime, fmt.Sprintf("%s: panic recovered", pluginID)).WithStack()
	}
	return
}
