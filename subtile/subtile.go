// Package subtile implements the tile arithmetic shared by the register
// builders.
//
// Remainders follow the hardware convention: the last subtile of a
// dimension that divides evenly is full sized, never zero.
package subtile

// Count returns the number of size-wide tiles needed to cover dim.
// dim and size must be positive.
func Count(dim, size int) int {
	return (dim-1)/size + 1
}

// Remainder returns the extent of the last tile, in [1, size].
func Remainder(dim, size int) int {
	return (dim-1)%size + 1
}

// Split returns Count and Remainder together.
func Split(dim, size int) (n, rem int) {
	return Count(dim, size), Remainder(dim, size)
}

// Concat packs two 16-bit halves into one register word.
func Concat(high, low uint16) uint32 {
	return uint32(high)<<16 | uint32(low)
}

// ConcatInt packs two non-negative ints, truncating each to 16 bits.
func ConcatInt(high, low int) uint32 {
	return Concat(uint16(high), uint16(low))
}

// High returns the upper 16 bits of a packed word.
func High(w uint32) uint16 {
	return uint16(w >> 16)
}

// Low returns the lower 16 bits of a packed word.
func Low(w uint32) uint16 {
	return uint16(w)
}
