package fault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies errors that cross the pipeline boundary.
type Kind string

const (
	KindConfig     Kind = "config"
	KindData       Kind = "data"
	KindOutput     Kind = "output"
	KindRetrieve   Kind = "retrieve"
	KindUnexpected Kind = "unexpected"
)

// Error is a classified pipeline error with optional structured detail.
type Error struct {
	Kind   Kind
	Msg    string
	Detail map[string]any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Verbose renders the message with its detail keys in sorted order.
func (e *Error) Verbose() string {
	if len(e.Detail) == 0 {
		return e.Error()
	}
	keys := make([]string, 0, len(e.Detail))
	for k := range e.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Detail[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Error(), strings.Join(parts, ", "))
}

// Config reports a missing or invalid setup, including unknown module ids.
func Config(detail map[string]any, format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Msg: fmt.Sprintf(format, args...), Detail: detail}
}

// Data reports unreadable, corrupt or structurally invalid input.
func Data(detail map[string]any, format string, args ...any) *Error {
	return &Error{Kind: KindData, Msg: fmt.Sprintf(format, args...), Detail: detail}
}

// Output reports a rendering or export failure.
func Output(detail map[string]any, format string, args ...any) *Error {
	return &Error{Kind: KindOutput, Msg: fmt.Sprintf(format, args...), Detail: detail}
}

// Retrieve reports a failure fetching input files.
func Retrieve(detail map[string]any, format string, args ...any) *Error {
	return &Error{Kind: KindRetrieve, Msg: fmt.Sprintf(format, args...), Detail: detail}
}

// Wrap classifies err under kind, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindUnexpected when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailOf returns the detail map of the first classified error in err's chain.
func DetailOf(err error) map[string]any {
	var fe *Error
	if errors.As(err, &fe) && fe.Detail != nil {
		return fe.Detail
	}
	return map[string]any{}
}
