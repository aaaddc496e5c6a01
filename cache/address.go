package cache

// Decode splits an address into the set it maps to and the tag stored in
// that set. The geometry must have passed Validate.
func Decode(address uint64, g Geometry) (setIndex, tag uint64) {
	setIndex = (address >> uint(g.BlockOffsetBits)) & (g.NumSets() - 1)

	// A shift by the full address width yields 0 in Go, which is the tag
	// of every address when s+b covers all 64 bits.
	tag = address >> uint(g.SetIndexBits+g.BlockOffsetBits)

	return setIndex, tag
}
