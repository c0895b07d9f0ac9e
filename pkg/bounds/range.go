/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: range.go
Description: Inclusive integer ranges for the argv fuzzer. Every randomized
quantity (argument count, stdin size) is bounded by a Range, which can be built
directly or parsed from command-line text in the form "N" or "A..=B".
*/

package bounds

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// ErrInvalidRange is returned when a range would end before it starts.
var ErrInvalidRange = errors.New("cannot construct a backwards range")

const rangeSeparator = "..="

// Integer is the set of types a Range can bound.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Range is an inclusive interval [start, end] with end >= start.
// The zero value is the single-value range [0, 0].
type Range[T Integer] struct {
	start T
	end   T
}

// New builds a range, failing with ErrInvalidRange when end < start.
func New[T Integer](start, end T) (Range[T], error) {
	if end < start {
		return Range[T]{}, fmt.Errorf("%w: %v..=%v", ErrInvalidRange, start, end)
	}
	return Range[T]{start: start, end: end}, nil
}

// Single builds the zero-width range [v, v].
func Single[T Integer](v T) Range[T] {
	return Range[T]{start: v, end: v}
}

// Start returns the inclusive lower bound.
func (r Range[T]) Start() T { return r.start }

// End returns the inclusive upper bound.
func (r Range[T]) End() T { return r.end }

// Contains reports whether v lies within the range.
func (r Range[T]) Contains(v T) bool {
	return v >= r.start && v <= r.end
}

// String renders the range the same way Parse accepts it.
func (r Range[T]) String() string {
	if r.start == r.end {
		return fmt.Sprint(r.start)
	}
	return fmt.Sprintf("%v%s%v", r.start, rangeSeparator, r.end)
}

// MarshalText implements encoding.TextMarshaler.
func (r Range[T]) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Range[T]) UnmarshalText(text []byte) error {
	parsed, err := Parse[T](string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseError describes range text that could not be understood.
type ParseError struct {
	Input  string // The full text being parsed
	Value  string // The offending substring
	Reason error
}

func (e *ParseError) Error() string {
	if e.Value == e.Input {
		return fmt.Sprintf("invalid range %q: %v", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid range %q: bad value %q: %v", e.Input, e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Reason }

// Parse reads either a single value "N", meaning [N, N], or an inclusive
// range "A..=B". Both endpoints must fit in T.
func Parse[T Integer](s string) (Range[T], error) {
	startText, endText, isRange := strings.Cut(s, rangeSeparator)
	if !isRange {
		v, err := parseValue[T](s)
		if err != nil {
			return Range[T]{}, &ParseError{Input: s, Value: s, Reason: err}
		}
		return Single(v), nil
	}

	start, err := parseValue[T](startText)
	if err != nil {
		return Range[T]{}, &ParseError{Input: s, Value: startText, Reason: err}
	}
	end, err := parseValue[T](endText)
	if err != nil {
		return Range[T]{}, &ParseError{Input: s, Value: endText, Reason: err}
	}
	if end < start {
		return Range[T]{}, &ParseError{Input: s, Value: s, Reason: ErrInvalidRange}
	}
	return Range[T]{start: start, end: end}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse[T Integer](s string) Range[T] {
	r, err := Parse[T](s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseValue[T Integer](s string) (T, error) {
	var zero T
	bits := int(unsafe.Sizeof(zero)) * 8

	if signed[T]() {
		v, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return zero, numError(err)
		}
		return T(v), nil
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return zero, numError(err)
	}
	return T(v), nil
}

func signed[T Integer]() bool {
	var zero T
	return zero-1 < zero
}

// numError strips strconv's own quoting of the input, ParseError already names it.
func numError(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}
