// Package descriptor holds the binary feature descriptor type, its Hamming
// metric and the flat byte encoding persisted in the images table.
package descriptor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Size is the width of one descriptor in bytes (256 bits).
const Size = 32

// ErrCorrupt is returned when a stored buffer cannot be split into whole descriptors.
var ErrCorrupt = errors.New("descriptor data corrupt")

// Descriptor is one 256-bit binary code describing the patch around a keypoint.
type Descriptor [Size]byte

// Set is an ordered sequence of descriptors extracted from one frame.
// A nil Set means "absent", an empty non-nil Set means "no features found".
type Set []Descriptor

// Distance returns the Hamming distance between two descriptors.
func Distance(a, b *Descriptor) int {
	d := 0
	for i := 0; i < Size; i += 8 {
		x := binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:])
		d += bits.OnesCount64(x)
	}
	return d
}

// Len returns the number of descriptors in the set.
func (s Set) Len() int {
	return len(s)
}

// Marshal flattens the set row-major into Size*N bytes.
// It returns nil for an absent or empty set, which the store treats as "nothing to save".
func Marshal(s Set) []byte {
	if len(s) == 0 {
		return nil
	}
	out := make([]byte, 0, len(s)*Size)
	for i := range s {
		out = append(out, s[i][:]...)
	}
	return out
}

// Unmarshal rebuilds a set from a stored buffer. A nil buffer yields a nil set.
// A buffer whose length is not a multiple of Size yields ErrCorrupt.
func Unmarshal(data []byte) (Set, error) {
	if data == nil {
		return nil, nil
	}
	if len(data)%Size != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorrupt, len(data), Size)
	}
	s := make(Set, len(data)/Size)
	for i := range s {
		copy(s[i][:], data[i*Size:(i+1)*Size])
	}
	return s, nil
}
