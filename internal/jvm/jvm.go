// Package jvm describes the host runtime surface the agent talks to: the JNI
// handle types seen by native methods, the subset of JNIEnv used to read
// arguments, and the subset of the JVM tool interface used to observe native
// method binding and walk stacks.
//
// Nothing here redirects code. The host owns address substitution; the agent
// only ever proposes a replacement entry through the bind callback's output
// slot.
package jvm

// JNI return codes.
const (
	JNI_OK        = 0
	JNI_ERR       = -1
	JNI_EDETACHED = -2
	JNI_EVERSION  = -3
)

// Interface versions.
const (
	JNI_VERSION_1_6   = 0x00010006
	JVMTI_VERSION_1_2 = 0x30010200
)

// Release modes for Release<Type>ArrayElements.
const (
	JNI_COMMIT = 1
	JNI_ABORT  = 2
)

// Opaque host references. The zero value is the null reference.
type (
	Object    uintptr
	Class     uintptr
	String    uintptr
	ByteArray uintptr
	IntArray  uintptr
	LongArray uintptr
	MethodID  uintptr
)

// Location is a bytecode index within a method, or -1 for native frames.
type Location int64

// Entry is an implementation address as handed out by the host. For the
// watched targets it holds a value of the matching *Func type below.
type Entry any

// Event identifies a JVMTI event type.
type Event int

// EventNativeMethodBind is the only event the agent enables.
const EventNativeMethodBind Event = 67

// Capabilities is the subset of jvmtiCapabilities the agent requests.
type Capabilities struct {
	CanGenerateNativeMethodBindEvents bool
}

// FrameInfo is one entry of a stack trace.
type FrameInfo struct {
	Method   MethodID
	Location Location
}

// Env is the per-thread JNI environment passed to every native method.
type Env interface {
	// GetStringUTFChars returns the modified UTF-8 bytes of s. The slice is
	// host-owned and must be handed back with ReleaseStringUTFChars.
	GetStringUTFChars(s String) []byte
	ReleaseStringUTFChars(s String, chars []byte)

	// GetArrayLength returns the declared element count of a.
	GetArrayLength(a ByteArray) int

	// GetByteArrayElements returns a view of the array contents. The slice is
	// host-owned and must be handed back with ReleaseByteArrayElements.
	GetByteArrayElements(a ByteArray) []byte
	ReleaseByteArrayElements(a ByteArray, elems []byte, mode int)
}

// NativeMethodBindFunc is the NativeMethodBind event callback. Setting
// *newAddress redirects the binding; leaving it untouched keeps address.
type NativeMethodBindFunc func(env Env, method MethodID, address Entry, newAddress *Entry)

// TI is the tool interface environment obtained from the VM.
type TI interface {
	AddCapabilities(caps Capabilities) error
	SetNativeMethodBindCallback(cb NativeMethodBindFunc) error
	SetEventNotificationMode(enable bool, event Event) error

	GetMethodName(method MethodID) (name, signature string, err error)
	GetMethodDeclaringClass(method MethodID) (Class, error)
	GetClassSignature(class Class) (string, error)

	// GetStackTrace fills frames with the stack of the thread that owns env,
	// starting at startDepth, and returns the number of frames written.
	GetStackTrace(env Env, startDepth int, frames []FrameInfo) (int, error)
}

// VM is the invocation interface handed to the agent at load or attach.
type VM interface {
	GetEnv(version int) (TI, error)
}

// ProcessImplCreateFunc is the signature of
// Java_java_lang_ProcessImpl_create (Windows):
//
//	static native long create(String cmdstr, String envblock, String dir,
//	                          long[] stdHandles, boolean redirectErrorStream)
type ProcessImplCreateFunc func(env Env, clazz Class, cmd, envBlock, dir String, stdHandles LongArray, redirectErrorStream bool) int64

// ForkAndExecFunc is the signature of Java_java_lang_UNIXProcess_forkAndExec:
//
//	native int forkAndExec(int mode, byte[] helperpath, byte[] prog,
//	                       byte[] argBlock, int argc, byte[] envBlock, int envc,
//	                       byte[] dir, int[] fds, boolean redirectErrorStream)
type ForkAndExecFunc func(env Env, process Object, mode int32, helperPath, prog, argBlock ByteArray, argc int32, envBlock ByteArray, envc int32, dir ByteArray, fds IntArray, redirectErrorStream bool) int32
