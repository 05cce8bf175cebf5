package hooks

import (
	"errors"
	"fmt"

	"github.com/zboralski/raspguard/internal/jvm"
	glog "github.com/zboralski/raspguard/internal/log"
)

// MaxStackFrames bounds every stack walk.
const MaxStackFrames = 64

// Placeholders for metadata the host could not provide.
const (
	unknownMethod = "<unknown method>"
	noClass       = "<no-class>"
	noMethod      = "<no-method>"
)

// Frame is one resolved stack frame.
type Frame struct {
	Index     int
	Class     string
	Method    string
	Signature string
	Location  jvm.Location
}

// String renders the frame as logged.
func (f Frame) String() string {
	if f.Method == unknownMethod {
		return fmt.Sprintf("#%d %s (location=%d)", f.Index, unknownMethod, f.Location)
	}
	return fmt.Sprintf("#%d %s.%s %s (location=%d)", f.Index, f.Class, f.Method, f.Signature, f.Location)
}

// StackReporter captures the calling thread's Java stack.
type StackReporter struct {
	ti    jvm.TI
	log   *glog.Logger
	depth int
}

// NewStackReporter creates a reporter walking at most depth frames.
func NewStackReporter(ti jvm.TI, log *glog.Logger, depth int) *StackReporter {
	if depth <= 0 || depth > MaxStackFrames {
		depth = MaxStackFrames
	}
	return &StackReporter{ti: ti, log: log, depth: depth}
}

// Capture resolves the frames of the thread owning env. Metadata failures
// become placeholders; a failed walk yields no frames.
func (r *StackReporter) Capture(env jvm.Env) ([]Frame, error) {
	if r.ti == nil {
		return nil, errors.New("no tool interface")
	}

	var buf [MaxStackFrames]jvm.FrameInfo
	n, err := r.ti.GetStackTrace(env, 0, buf[:r.depth])
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, n)
	for i, fi := range buf[:n] {
		frames = append(frames, r.resolve(i, fi))
	}
	return frames, nil
}

func (r *StackReporter) resolve(i int, fi jvm.FrameInfo) Frame {
	f := Frame{Index: i, Class: noClass, Method: noMethod, Location: fi.Location}
	if fi.Method == 0 {
		f.Method = unknownMethod
		return f
	}
	if name, sig, err := r.ti.GetMethodName(fi.Method); err == nil {
		f.Method = name
		f.Signature = sig
	}
	if class, err := r.ti.GetMethodDeclaringClass(fi.Method); err == nil {
		if sig, err := r.ti.GetClassSignature(class); err == nil {
			f.Class = sig
		}
	}
	return f
}

// Report captures and logs the stack between a header and a footer. It never
// fails; problems are logged and an empty stack is returned.
func (r *StackReporter) Report(env jvm.Env) []Frame {
	frames, err := r.Capture(env)
	if err != nil {
		r.log.Logf("GetStackTrace failed: %v", err)
		return nil
	}
	r.log.Logf("=== JVMTI StackTrace (frames=%d) ===", len(frames))
	for _, f := range frames {
		r.log.Frame(f)
	}
	r.log.Logf("=== End StackTrace ===")
	return frames
}
