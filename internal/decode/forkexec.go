package decode

import "github.com/zboralski/raspguard/internal/jvm"

// ForkExec is the decoded view of a forkAndExec call (profile B): the spawn
// helper path, the program path and the NUL-separated argument block.
type ForkExec struct {
	helper  [HelperCap]byte
	helperN int
	prog    [ProgramCap]byte
	progN   int
	args    [ArgsCap]byte
	argsN   int
	cmd     [CommandCap]byte
	cmdN    int
}

// DecodeForkExec copies the three byte blocks into independent bounded
// buffers. The argument block has NUL, CR, LF and TAB translated to spaces.
func DecodeForkExec(env jvm.Env, helperPath, prog, argBlock jvm.ByteArray) ForkExec {
	var f ForkExec
	f.helperN = byteArray(env, helperPath, f.helper[:], func(src []byte) int {
		return copyBounded(f.helper[:], cstring(src))
	})
	f.progN = byteArray(env, prog, f.prog[:], func(src []byte) int {
		return copyBounded(f.prog[:], cstring(src))
	})
	f.argsN = byteArray(env, argBlock, f.args[:], func(src []byte) int {
		return normalizeArgs(f.args[:], src)
	})
	f.combine()
	return f
}

// normalizeArgs writes src into dst with separators turned into single
// spaces, drops trailing spaces left by terminators, and NUL-terminates.
func normalizeArgs(dst, src []byte) int {
	j := 0
	for _, c := range src {
		if j >= len(dst)-1 {
			break
		}
		switch c {
		case 0, '\r', '\n', '\t':
			dst[j] = ' '
		default:
			dst[j] = c
		}
		j++
	}
	for j > 0 && dst[j-1] == ' ' {
		j--
	}
	dst[j] = 0
	return j
}

// combine renders "helper prog args" into cmd, substituting Placeholder for
// empty fields.
func (f *ForkExec) combine() {
	n := 0
	put := func(b []byte) {
		if len(b) == 0 {
			b = []byte(Placeholder)
		}
		n += copy(f.cmd[n:len(f.cmd)-1], b)
	}
	put(f.helper[:f.helperN])
	put([]byte{' '})
	put(f.prog[:f.progN])
	put([]byte{' '})
	put(f.args[:f.argsN])
	f.cmd[n] = 0
	f.cmdN = n
}

// Helper returns the spawn helper path.
func (f *ForkExec) Helper() string { return string(f.helper[:f.helperN]) }

// Program returns the program path.
func (f *ForkExec) Program() string { return string(f.prog[:f.progN]) }

// Args returns the normalized argument block.
func (f *ForkExec) Args() string { return string(f.args[:f.argsN]) }

// Text returns the combined command text used for policy and logging.
func (f *ForkExec) Text() string { return string(f.cmd[:f.cmdN]) }
