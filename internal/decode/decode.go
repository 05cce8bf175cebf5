// Package decode turns host-encoded native method arguments into bounded
// local text.
//
// Every field has a fixed capacity. Input longer than a field's capacity is
// truncated, never rejected, and decoding never reads past the length the
// host declares for an array. Buffers live in the decoded value itself, so a
// decode on one thread never shares storage with a decode on another.
package decode

import "github.com/zboralski/raspguard/internal/jvm"

// Field capacities in bytes, including the terminating NUL.
const (
	CommandCap = 4096
	HelperCap  = 256
	ProgramCap = 256
	ArgsCap    = 2048
)

// Placeholder stands in for a missing field in combined command text.
const Placeholder = "(null)"

// copyBounded copies src into dst, leaving room for a terminating NUL, and
// returns the number of bytes copied.
func copyBounded(dst, src []byte) int {
	n := len(src)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, src[:n])
	dst[n] = 0
	return n
}

// cstring returns b up to its first NUL.
func cstring(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// byteArray reads at most len(dst)-1 bytes of a, bounded by the declared
// array length, and hands the elements back without copy-back.
func byteArray(env jvm.Env, a jvm.ByteArray, dst []byte, visit func(src []byte) int) int {
	if a == 0 {
		return 0
	}
	declared := env.GetArrayLength(a)
	if declared <= 0 {
		return 0
	}
	elems := env.GetByteArrayElements(a)
	if elems == nil {
		return 0
	}
	defer env.ReleaseByteArrayElements(a, elems, jvm.JNI_ABORT)

	src := elems
	if len(src) > declared {
		src = src[:declared]
	}
	if len(src) > len(dst)-1 {
		src = src[:len(dst)-1]
	}
	return visit(src)
}
