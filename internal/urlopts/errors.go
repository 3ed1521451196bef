package urlopts

import (
	"fmt"
	"strings"
)

// Kind classifies why options could not be converted into a URL.
type Kind int

const (
	KindMutuallyExclusive Kind = iota + 1
	KindDeprecated
	KindMissingProtocol
	KindMalformedInput
)

func (k Kind) String() string {
	switch k {
	case KindMutuallyExclusive:
		return "mutually_exclusive_options"
	case KindDeprecated:
		return "deprecated_option"
	case KindMissingProtocol:
		return "missing_protocol"
	case KindMalformedInput:
		return "malformed_input"
	default:
		return "unknown"
	}
}

// ValidationError is returned by ToURL for every rejected configuration.
// Message is the human readable text callers surface as is.
type ValidationError struct {
	Kind    Kind
	Fields  []string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the URL parser error for KindMalformedInput.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *ValidationError of the same Kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok || t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Sentinels usable with errors.Is.
var (
	ErrMutuallyExclusive = &ValidationError{Kind: KindMutuallyExclusive}
	ErrDeprecated        = &ValidationError{Kind: KindDeprecated}
	ErrMissingProtocol   = &ValidationError{Kind: KindMissingProtocol}
	ErrMalformedInput    = &ValidationError{Kind: KindMalformedInput}
)

func mutuallyExclusive(a, b string) *ValidationError {
	return &ValidationError{
		Kind:    KindMutuallyExclusive,
		Fields:  []string{a, b},
		Message: fmt.Sprintf("Parameters `%s` and `%s` are mutually exclusive.", a, b),
	}
}

func deprecated(field string, replacements ...string) *ValidationError {
	quoted := make([]string, len(replacements))
	for i, r := range replacements {
		quoted[i] = "`" + r + "`"
	}
	return &ValidationError{
		Kind:    KindDeprecated,
		Fields:  []string{field},
		Message: fmt.Sprintf("Parameter `%s` is deprecated. Use %s instead.", field, strings.Join(quoted, " / ")),
	}
}

func missingProtocol() *ValidationError {
	return &ValidationError{
		Kind:    KindMissingProtocol,
		Fields:  []string{"protocol"},
		Message: "No URL protocol specified",
	}
}

func malformed(field, message string, err error) *ValidationError {
	return &ValidationError{
		Kind:    KindMalformedInput,
		Fields:  []string{field},
		Message: message,
		Err:     err,
	}
}
