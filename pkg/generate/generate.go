/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: generate.go
Description: Pseudorandom value generators for the argv fuzzer. Produces
bounded integers, raw stdin payloads, text-safe argument strings and hexadecimal
artifact suffixes. Every generator takes the randomness source explicitly so a
whole fuzzing session can be replayed from one seed.
*/

package generate

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/kleascm/argv-fuzzer/pkg/bounds"
)

// ErrDistribution is returned when a range cannot be sampled uniformly.
var ErrDistribution = errors.New("cannot build a uniform distribution")

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF

	// Scalar values 1..=U+10FFFF minus the surrogate block. U+0000 is left out
	// because the OS refuses NUL bytes inside process arguments.
	scalarCount = utf8.MaxRune - (surrogateMax - surrogateMin + 1)

	hexDigits = "0123456789abcdef"
)

// NewSource returns a deterministic random stream for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// UniformInt draws uniformly from r, both ends inclusive.
func UniformInt[T bounds.Integer](rng *rand.Rand, r bounds.Range[T]) (T, error) {
	start, end := r.Start(), r.End()
	if end < start {
		return start, fmt.Errorf("%w: %v", ErrDistribution, r)
	}

	// Two's complement subtraction gives the span for signed and unsigned T alike.
	span := uint64(end) - uint64(start)
	if span == 0 {
		return start, nil
	}
	if span == ^uint64(0) {
		return start + T(rng.Uint64()), nil
	}
	return start + T(rng.Uint64N(span+1)), nil
}

// Bytes returns exactly n bytes, each drawn uniformly from 0..=255.
func Bytes(rng *rand.Rand, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; {
		v := rng.Uint64()
		for j := 0; j < 8 && i < n; j++ {
			buf[i] = byte(v)
			v >>= 8
			i++
		}
	}
	return buf
}

// Stdin draws a byte count from r and returns that many random bytes.
func Stdin(rng *rand.Rand, r bounds.Range[int]) ([]byte, error) {
	if r.Start() < 0 {
		return nil, fmt.Errorf("%w: negative byte count in %v", ErrDistribution, r)
	}
	n, err := UniformInt(rng, r)
	if err != nil {
		return nil, err
	}
	return Bytes(rng, n), nil
}

// Rune returns a uniformly sampled Unicode scalar value other than U+0000.
func Rune(rng *rand.Rand) rune {
	v := rune(rng.IntN(scalarCount)) + 1
	if v >= surrogateMin {
		v += surrogateMax - surrogateMin + 1
	}
	return v
}

// ArgumentString draws a length in [0, maxLen] and fills it with random
// scalar values. maxLen counts code points, not bytes.
func ArgumentString(rng *rand.Rand, maxLen int) string {
	n := rng.IntN(maxLen + 1)

	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteRune(Rune(rng))
	}
	return sb.String()
}

// HexString returns n lowercase hexadecimal digits.
func HexString(rng *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = hexDigits[rng.IntN(len(hexDigits))]
	}
	return string(buf)
}

// ArgStream yields a fixed number of random arguments, generating each one
// only when asked for. A stream can be consumed once.
type ArgStream struct {
	rng       *rand.Rand
	maxLen    int
	remaining int
}

// ExtraArgs draws the argument count from countRange right away and returns a
// stream that generates the arguments on demand.
func ExtraArgs(rng *rand.Rand, countRange bounds.Range[int], maxLen int) (*ArgStream, error) {
	if maxLen < 0 || maxLen == math.MaxInt {
		return nil, fmt.Errorf("%w: argument length %d", ErrDistribution, maxLen)
	}
	if countRange.Start() < 0 {
		return nil, fmt.Errorf("%w: negative argument count in %v", ErrDistribution, countRange)
	}
	n, err := UniformInt(rng, countRange)
	if err != nil {
		return nil, err
	}
	return &ArgStream{rng: rng, maxLen: maxLen, remaining: n}, nil
}

// Len reports how many arguments are still to come.
func (s *ArgStream) Len() int { return s.remaining }

// Next generates the next argument. ok is false once the stream is drained.
func (s *ArgStream) Next() (arg string, ok bool) {
	if s.remaining == 0 {
		return "", false
	}
	s.remaining--
	return ArgumentString(s.rng, s.maxLen), true
}

// All drains the stream as an iterator.
func (s *ArgStream) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			arg, ok := s.Next()
			if !ok || !yield(arg) {
				return
			}
		}
	}
}

// Collect drains the remaining arguments into a slice.
func (s *ArgStream) Collect() []string {
	args := make([]string, 0, s.remaining)
	for arg := range s.All() {
		args = append(args, arg)
	}
	return args
}
