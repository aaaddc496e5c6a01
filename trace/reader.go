package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MalformedRecordError reports a memory operation line that cannot be
// parsed.
type MalformedRecordError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed trace record at line %d (%q): %s",
		e.Line, e.Text, e.Reason)
}

// ParseLine parses one trace line. Memory operations start with a space
// and look like " L 7ff000398,8". Any other line, such as a valgrind
// instruction fetch "I  0400d7d4,8" or a blank line, is not a memory
// operation and yields ok == false with a nil error.
func ParseLine(text string) (access Access, ok bool, err error) {
	if strings.TrimSpace(text) == "" || text[0] != ' ' {
		return Access{}, false, nil
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Access{}, false, errors.New("expected \"<op> <address>,<size>\"")
	}

	if len(fields[0]) != 1 {
		return Access{}, false, fmt.Errorf("unknown operation %q", fields[0])
	}

	kind, known := KindFromByte(fields[0][0])
	if !known {
		return Access{}, false, fmt.Errorf("unknown operation %q", fields[0])
	}

	addrText, sizeText, found := strings.Cut(fields[1], ",")
	if !found {
		return Access{}, false, errors.New("missing \",<size>\"")
	}

	address, err := parseAddress(addrText)
	if err != nil {
		return Access{}, false, err
	}

	size, err := strconv.ParseUint(sizeText, 10, 32)
	if err != nil {
		return Access{}, false, fmt.Errorf("invalid size %q", sizeText)
	}

	return Access{Kind: kind, Address: address, Size: uint32(size)}, true, nil
}

func parseAddress(text string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")

	address, err := strconv.ParseUint(digits, 16, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("address %q does not fit in 64 bits", text)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", text)
	}

	return address, nil
}

// Reader streams accesses from a trace. Only the current line is kept in
// memory.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	err     error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next memory operation. It returns io.EOF after the last
// one. A malformed line returns a *MalformedRecordError; once Next has
// returned an error it keeps returning it.
func (r *Reader) Next() (Access, error) {
	if r.err != nil {
		return Access{}, r.err
	}

	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()

		access, ok, err := ParseLine(text)
		if err != nil {
			r.err = &MalformedRecordError{
				Line:   r.line,
				Text:   text,
				Reason: err.Error(),
			}
			return Access{}, r.err
		}

		if !ok {
			continue
		}

		access.LineNumber = r.line
		return access, nil
	}

	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("failed to read trace: %w", err)
		return Access{}, r.err
	}

	r.err = io.EOF
	return Access{}, r.err
}

// File is a Reader over an opened trace file.
type File struct {
	*Reader
	f *os.File
}

// Open opens a trace file for streaming.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &File{Reader: NewReader(f), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
