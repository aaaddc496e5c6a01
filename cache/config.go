package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// AddressWidth is the number of bits in a simulated address.
const AddressWidth = 64

// MaxSetIndexBits bounds the number of sets a cache may have.
const MaxSetIndexBits = 30

// MaxLines bounds the total number of lines (sets times ways) so that an
// absurd geometry fails validation instead of exhausting memory.
const MaxLines = 1 << 28

// ErrInvalidGeometry is wrapped by every geometry validation failure.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// Geometry describes the shape of a set-associative cache.
type Geometry struct {
	// SetIndexBits (s) is the number of address bits that select a set.
	// The cache holds 2^s sets.
	SetIndexBits int `json:"set_index_bits"`

	// Associativity (E) is the number of lines per set.
	Associativity int `json:"associativity"`

	// BlockOffsetBits (b) is the number of address bits that select a byte
	// within a block. Block contents are not modeled.
	BlockOffsetBits int `json:"block_offset_bits"`
}

// NumSets returns the number of sets, 2^s.
func (g Geometry) NumSets() uint64 {
	return uint64(1) << uint(g.SetIndexBits)
}

// BlockSize returns the block size in bytes, 2^b. It is informational only.
func (g Geometry) BlockSize() uint64 {
	if g.BlockOffsetBits >= AddressWidth {
		return 0
	}

	return uint64(1) << uint(g.BlockOffsetBits)
}

// String formats the geometry the way the command line takes it.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d",
		g.SetIndexBits, g.Associativity, g.BlockOffsetBits)
}

// Validate checks that a cache can be built with this geometry.
func (g Geometry) Validate() error {
	if g.SetIndexBits < 0 {
		return fmt.Errorf("%w: set_index_bits must be >= 0", ErrInvalidGeometry)
	}
	if g.BlockOffsetBits < 0 {
		return fmt.Errorf("%w: block_offset_bits must be >= 0", ErrInvalidGeometry)
	}
	if g.Associativity <= 0 {
		return fmt.Errorf("%w: associativity must be > 0", ErrInvalidGeometry)
	}
	if g.SetIndexBits+g.BlockOffsetBits > AddressWidth {
		return fmt.Errorf("%w: set_index_bits + block_offset_bits = %d exceeds %d-bit addresses",
			ErrInvalidGeometry, g.SetIndexBits+g.BlockOffsetBits, AddressWidth)
	}
	if g.SetIndexBits > MaxSetIndexBits {
		return fmt.Errorf("%w: set_index_bits must be <= %d",
			ErrInvalidGeometry, MaxSetIndexBits)
	}
	if uint64(g.Associativity) > MaxLines/g.NumSets() {
		return fmt.Errorf("%w: %d sets x %d ways exceeds %d lines",
			ErrInvalidGeometry, g.NumSets(), g.Associativity, MaxLines)
	}

	return nil
}

// LoadGeometry loads a Geometry from a JSON file. The result is not
// validated; callers may still override fields before calling Validate.
func LoadGeometry(path string) (Geometry, error) {
	var g Geometry

	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("failed to read geometry file: %w", err)
	}

	if err := json.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("failed to parse geometry file: %w", err)
	}

	return g, nil
}

// Save writes the geometry to a JSON file.
func (g Geometry) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize geometry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write geometry file: %w", err)
	}

	return nil
}
