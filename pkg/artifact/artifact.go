/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: artifact.go
Description: Failure artifacts for the argv fuzzer. A failing trial is saved
as a pair of sibling files sharing a random hex suffix: input-<suffix> holds the raw
stdin payload and args-<suffix> holds the argument vector as length-prefixed byte
strings, so the exact invocation can be replayed later.
*/

package artifact

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/kleascm/argv-fuzzer/pkg/generate"
)

const (
	// DefaultSuffixLen gives 48 bits of randomness per artifact name.
	DefaultSuffixLen = 12

	InputPrefix = "input-"
	ArgsPrefix  = "args-"

	lengthPrefixSize = 8
)

// ErrTruncatedArgs is returned when an args file ends inside a record.
var ErrTruncatedArgs = errors.New("truncated args record")

// Record is one persisted failing case.
type Record struct {
	Suffix    string
	Stdin     []byte
	Args      [][]byte
	InputPath string
	ArgsPath  string
}

// StringArgs returns the arguments as Go strings, byte for byte.
func (r *Record) StringArgs() []string {
	out := make([]string, len(r.Args))
	for i, arg := range r.Args {
		out[i] = string(arg)
	}
	return out
}

// Recorder writes failing cases into Dir.
type Recorder struct {
	Dir       string
	SuffixLen int
}

// NewRecorder creates a recorder for dir. An empty dir means the working directory.
func NewRecorder(dir string) *Recorder {
	if dir == "" {
		dir = "."
	}
	return &Recorder{Dir: dir, SuffixLen: DefaultSuffixLen}
}

// Record draws a suffix from rng and writes input-<suffix> and args-<suffix>.
// Both files are created exclusively: an existing file with the same name is an
// error, never overwritten. A failure part-way leaves whatever was written.
func (r *Recorder) Record(rng *rand.Rand, stdin []byte, args []string) (*Record, error) {
	suffixLen := r.SuffixLen
	if suffixLen <= 0 {
		suffixLen = DefaultSuffixLen
	}
	suffix := generate.HexString(rng, suffixLen)

	rec := &Record{
		Suffix:    suffix,
		Stdin:     stdin,
		Args:      make([][]byte, len(args)),
		InputPath: filepath.Join(r.Dir, InputPrefix+suffix),
		ArgsPath:  filepath.Join(r.Dir, ArgsPrefix+suffix),
	}
	for i, arg := range args {
		rec.Args[i] = []byte(arg)
	}

	if err := writeNew(rec.InputPath, func(w io.Writer) error {
		_, err := w.Write(stdin)
		return err
	}); err != nil {
		return nil, err
	}
	if err := writeNew(rec.ArgsPath, func(w io.Writer) error {
		return EncodeArgs(w, rec.Args)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeNew(path string, write func(io.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close artifact file %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write artifact file %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write artifact file %s: %w", path, err)
	}
	return nil
}

// EncodeArgs writes each argument as an 8-byte little-endian length followed
// by the argument bytes.
func EncodeArgs(w io.Writer, args [][]byte) error {
	var prefix [lengthPrefixSize]byte
	for _, arg := range args {
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(arg)))
		if _, err := w.Write(prefix[:]); err != nil {
			return err
		}
		if _, err := w.Write(arg); err != nil {
			return err
		}
	}
	return nil
}

// DecodeArgs reads records written by EncodeArgs until EOF.
func DecodeArgs(r io.Reader) ([][]byte, error) {
	args := make([][]byte, 0)
	var prefix [lengthPrefixSize]byte
	for {
		_, err := io.ReadFull(r, prefix[:])
		if errors.Is(err, io.EOF) {
			return args, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: length prefix: %v", ErrTruncatedArgs, err)
		}

		n := binary.LittleEndian.Uint64(prefix[:])
		// Read through a LimitReader so a corrupt length cannot force a huge allocation.
		arg, err := io.ReadAll(io.LimitReader(r, int64(min(n, 1<<62))))
		if err != nil {
			return nil, fmt.Errorf("failed to read args record: %w", err)
		}
		if uint64(len(arg)) != n {
			return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrTruncatedArgs, n, len(arg))
		}
		args = append(args, arg)
	}
}

// Load reads a persisted pair from dir.
func Load(dir, suffix string) (*Record, error) {
	rec := &Record{
		Suffix:    suffix,
		InputPath: filepath.Join(dir, InputPrefix+suffix),
		ArgsPath:  filepath.Join(dir, ArgsPrefix+suffix),
	}

	stdin, err := os.ReadFile(rec.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	rec.Stdin = stdin

	f, err := os.Open(rec.ArgsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open args file: %w", err)
	}
	defer f.Close()

	args, err := DecodeArgs(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rec.ArgsPath, err)
	}
	rec.Args = args
	return rec, nil
}
