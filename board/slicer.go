package board

// StagingSamples bounds how many samples the slicer buffers at a time, so
// a multi-hundred-MiB write never needs O(total) memory (spec.md §4.5).
const StagingSamples = 1024

// Role distinguishes which half of a 12-byte linked sample a board's
// slicer keeps.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

// SliceSample extracts one board's 8-byte wire sample from a 12-byte
// caller-supplied sample: time (bytes 0-3) concatenated with the primary's
// first data word (bytes 4-7) or the secondary's second data word (bytes
// 8-11) (spec.md §4.4, §4.5, scenario 2).
func SliceSample(in []byte, role Role) [8]byte {
	var out [8]byte
	copy(out[0:4], in[0:4])
	if role == RolePrimary {
		copy(out[4:8], in[4:8])
	} else {
		copy(out[4:8], in[8:12])
	}
	return out
}

// Slice streams in (a multiple of 12 bytes) through SliceSample in
// StagingSamples-sample chunks, calling emit with each chunk's 8-byte
// samples concatenated. emit is called with a buffer it must not retain
// past the call, matching the "never allocate O(total) memory" constraint.
func Slice(in []byte, role Role, emit func([]byte) error) error {
	const inSampleSize = 12
	const outSampleSize = 8
	buf := make([]byte, 0, StagingSamples*outSampleSize)

	for off := 0; off+inSampleSize <= len(in); off += inSampleSize {
		s := SliceSample(in[off:off+inSampleSize], role)
		buf = append(buf, s[:]...)
		if len(buf) == cap(buf) {
			if err := emit(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		if err := emit(buf); err != nil {
			return err
		}
	}
	return nil
}
