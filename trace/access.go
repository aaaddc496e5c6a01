// Package trace reads valgrind memory traces as a lazy stream of accesses.
package trace

import "fmt"

// Kind is the operation of a memory access.
type Kind uint8

const (
	// Load reads memory.
	Load Kind = iota + 1
	// Store writes memory.
	Store
	// Modify reads and then writes the same address.
	Modify
)

// KindFromByte maps the operation letter of a trace line to a Kind.
func KindFromByte(op byte) (Kind, bool) {
	switch op {
	case 'L':
		return Load, true
	case 'S':
		return Store, true
	case 'M':
		return Modify, true
	default:
		return 0, false
	}
}

// String returns the operation letter used in traces.
func (k Kind) String() string {
	switch k {
	case Load:
		return "L"
	case Store:
		return "S"
	case Modify:
		return "M"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether the kind is one of Load, Store or Modify.
func (k Kind) Valid() bool {
	return k >= Load && k <= Modify
}

// Access is one memory operation from a trace.
type Access struct {
	Kind    Kind
	Address uint64
	// Size is the number of bytes accessed. It does not affect cache
	// behavior because block contents are not modeled.
	Size uint32
	// LineNumber is the 1-based trace line the access came from, or 0 if
	// the access was not read from a file.
	LineNumber int
}

// String formats the access as it appears in a trace, without the leading
// space.
func (a Access) String() string {
	return fmt.Sprintf("%s %x,%d", a.Kind, a.Address, a.Size)
}
