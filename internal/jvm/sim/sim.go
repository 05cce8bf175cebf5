// Package sim provides an in-process stand-in for a JVM host.
// It keeps handle tables for strings and arrays, a table of method metadata,
// per-thread stacks, and delivers NativeMethodBind events the way a real VM
// does when it links a native method.
//
// Fault fields on VM let tests simulate hosts that refuse capabilities, lose
// metadata, or cannot walk stacks.
package sim

import (
	"sync"

	"github.com/zboralski/raspguard/internal/jvm"
)

// Method is the metadata the VM holds for a method.
type Method struct {
	Class     string // class signature, e.g. "Ljava/lang/ProcessImpl;"
	Name      string
	Signature string
	Native    bool
}

// VM is a simulated JVM implementing jvm.VM and jvm.TI.
type VM struct {
	mu sync.Mutex

	nextRef uintptr

	strings map[jvm.String][]byte
	bytes   map[jvm.ByteArray][]byte
	ints    map[jvm.IntArray][]int32
	longs   map[jvm.LongArray][]int64

	methods map[jvm.MethodID]*Method
	classes map[jvm.Class]string

	caps        jvm.Capabilities
	bindCB      jvm.NativeMethodBindFunc
	bindEnabled bool
	bound       map[jvm.MethodID]jvm.Entry

	released int // Release* calls, for leak checks

	// Faults.
	FailGetEnv           error
	FailAddCapabilities  error
	FailSetCallbacks     error
	FailNotification     error
	FailStackTrace       error
	HideMethodNames      bool // GetMethodName reports absent information
	HideDeclaringClasses bool // GetMethodDeclaringClass fails
}

// New creates an empty VM.
func New() *VM {
	return &VM{
		nextRef: 0x1000,
		strings: make(map[jvm.String][]byte),
		bytes:   make(map[jvm.ByteArray][]byte),
		ints:    make(map[jvm.IntArray][]int32),
		longs:   make(map[jvm.LongArray][]int64),
		methods: make(map[jvm.MethodID]*Method),
		classes: make(map[jvm.Class]string),
		bound:   make(map[jvm.MethodID]jvm.Entry),
	}
}

func (vm *VM) ref() uintptr {
	vm.nextRef += 8
	return vm.nextRef
}

// NewString allocates a java.lang.String.
func (vm *VM) NewString(s string) jvm.String {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ref := jvm.String(vm.ref())
	vm.strings[ref] = []byte(s)
	return ref
}

// NewByteArray allocates a byte[] holding a copy of b.
func (vm *VM) NewByteArray(b []byte) jvm.ByteArray {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ref := jvm.ByteArray(vm.ref())
	vm.bytes[ref] = append([]byte(nil), b...)
	return ref
}

// NewIntArray allocates an int[].
func (vm *VM) NewIntArray(v []int32) jvm.IntArray {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ref := jvm.IntArray(vm.ref())
	vm.ints[ref] = append([]int32(nil), v...)
	return ref
}

// NewLongArray allocates a long[].
func (vm *VM) NewLongArray(v []int64) jvm.LongArray {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ref := jvm.LongArray(vm.ref())
	vm.longs[ref] = append([]int64(nil), v...)
	return ref
}

// Bytes returns a copy of a byte[] contents.
func (vm *VM) Bytes(a jvm.ByteArray) []byte {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]byte(nil), vm.bytes[a]...)
}

// StringValue returns the contents of a String.
func (vm *VM) StringValue(s jvm.String) string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return string(vm.strings[s])
}

// DefineClass registers a class and returns its handle.
func (vm *VM) DefineClass(signature string) jvm.Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ref := jvm.Class(vm.ref())
	vm.classes[ref] = signature
	return ref
}

// DefineMethod registers a method and returns its id.
func (vm *VM) DefineMethod(m Method) jvm.MethodID {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id := jvm.MethodID(vm.ref())
	cp := m
	vm.methods[id] = &cp
	return id
}

// Released reports how many Release* calls have been made.
func (vm *VM) Released() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.released
}

// BindEnabled reports whether NativeMethodBind delivery is on.
func (vm *VM) BindEnabled() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.bindEnabled
}

// Capabilities returns the capabilities granted so far.
func (vm *VM) Capabilities() jvm.Capabilities {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.caps
}

// GetEnv implements jvm.VM.
func (vm *VM) GetEnv(version int) (jvm.TI, error) {
	if vm.FailGetEnv != nil {
		return nil, vm.FailGetEnv
	}
	if version != jvm.JVMTI_VERSION_1_2 {
		return nil, jvm.ErrVersion
	}
	return vm, nil
}

// AddCapabilities implements jvm.TI.
func (vm *VM) AddCapabilities(caps jvm.Capabilities) error {
	if vm.FailAddCapabilities != nil {
		return vm.FailAddCapabilities
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if caps.CanGenerateNativeMethodBindEvents {
		vm.caps.CanGenerateNativeMethodBindEvents = true
	}
	return nil
}

// SetNativeMethodBindCallback implements jvm.TI. A nil callback clears it.
func (vm *VM) SetNativeMethodBindCallback(cb jvm.NativeMethodBindFunc) error {
	if vm.FailSetCallbacks != nil {
		return vm.FailSetCallbacks
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.bindCB = cb
	return nil
}

// SetEventNotificationMode implements jvm.TI.
func (vm *VM) SetEventNotificationMode(enable bool, event jvm.Event) error {
	if vm.FailNotification != nil {
		return vm.FailNotification
	}
	if event != jvm.EventNativeMethodBind {
		return jvm.ErrIllegalArgument
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if enable && !vm.caps.CanGenerateNativeMethodBindEvents {
		return jvm.ErrMustPossessCapability
	}
	vm.bindEnabled = enable
	return nil
}

// GetMethodName implements jvm.TI.
func (vm *VM) GetMethodName(method jvm.MethodID) (string, string, error) {
	if vm.HideMethodNames {
		return "", "", jvm.ErrAbsentInformation
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	m, ok := vm.methods[method]
	if !ok {
		return "", "", jvm.ErrInvalidMethodID
	}
	return m.Name, m.Signature, nil
}

// GetMethodDeclaringClass implements jvm.TI.
func (vm *VM) GetMethodDeclaringClass(method jvm.MethodID) (jvm.Class, error) {
	if vm.HideDeclaringClasses {
		return 0, jvm.ErrInvalidMethodID
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	m, ok := vm.methods[method]
	if !ok {
		return 0, jvm.ErrInvalidMethodID
	}
	for ref, sig := range vm.classes {
		if sig == m.Class {
			return ref, nil
		}
	}
	ref := jvm.Class(vm.ref())
	vm.classes[ref] = m.Class
	return ref, nil
}

// GetClassSignature implements jvm.TI.
func (vm *VM) GetClassSignature(class jvm.Class) (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	sig, ok := vm.classes[class]
	if !ok {
		return "", jvm.ErrInvalidClass
	}
	return sig, nil
}

// GetStackTrace implements jvm.TI for threads created by NewThread.
func (vm *VM) GetStackTrace(env jvm.Env, startDepth int, frames []jvm.FrameInfo) (int, error) {
	if vm.FailStackTrace != nil {
		return 0, vm.FailStackTrace
	}
	t, ok := env.(*Thread)
	if !ok || t.vm != vm {
		return 0, jvm.ErrUnattachedThread
	}
	if startDepth < 0 {
		return 0, jvm.ErrIllegalArgument
	}
	stack := t.Frames()
	if startDepth >= len(stack) {
		return 0, nil
	}
	return copy(frames, stack[startDepth:]), nil
}

// Link resolves a native method the way the VM does on first invocation:
// if bind events are enabled the callback may substitute the entry. The
// effective entry is returned and remembered.
func (vm *VM) Link(env jvm.Env, method jvm.MethodID, address jvm.Entry) jvm.Entry {
	vm.mu.Lock()
	cb := vm.bindCB
	enabled := vm.bindEnabled
	vm.mu.Unlock()

	effective := address
	if enabled && cb != nil {
		cb(env, method, address, &effective)
	}

	vm.mu.Lock()
	vm.bound[method] = effective
	vm.mu.Unlock()
	return effective
}

// Bound returns the entry a method was linked to.
func (vm *VM) Bound(method jvm.MethodID) (jvm.Entry, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	e, ok := vm.bound[method]
	return e, ok
}
