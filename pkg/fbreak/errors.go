package fbreak

import (
	"errors"
	"fmt"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// ErrParse is the parse-failure kind: the data did not match the layout.
// It is the only error class recovered at an optional Block/Section
// boundary; everything else unwinds the whole parse.
var ErrParse = errors.New("parse failed")

// ConstructionError reports invalid combinator arguments: a bad label,
// a negative address or length, a non-parser child. Combinators are chained
// value expressions, so construction problems surface as panics carrying a
// *ConstructionError, always at build time and never during a parse.
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string {
	return "invalid parser construction: " + e.Reason
}

func constructionFail(format string, args ...any) {
	panic(&ConstructionError{Reason: fmt.Sprintf(format, args...)})
}

// LookupError reports a dynamic length or repeat count whose context key was
// not found in any enclosing scope. It is never recoverable.
type LookupError struct {
	Key string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no context entry holds key %q", e.Key)
}

// asParseError stamps data-shaped failures from the datasource with the
// ErrParse kind so optional boundaries can recover them. Address errors pass
// through untouched and stay fatal.
func asParseError(err error) error {
	if err == nil {
		return nil
	}
	var addrErr *datasource.AddressError
	if errors.Is(err, ErrParse) || errors.As(err, &addrErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrParse, err)
}

// recoverable reports whether an optional scope may swallow err.
func recoverable(err error) bool {
	return errors.Is(err, ErrParse)
}
