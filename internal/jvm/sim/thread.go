package sim

import (
	"sync"

	"github.com/zboralski/raspguard/internal/jvm"
)

// Thread is a Java thread attached to the VM. Its *Thread value is the
// thread's JNIEnv; passing it to a native method gives that method the
// thread's view of the heap and stack.
type Thread struct {
	vm   *VM
	Name string

	mu     sync.Mutex
	frames []jvm.FrameInfo // innermost first
}

// NewThread attaches a thread with the given frames, innermost first.
func (vm *VM) NewThread(name string, frames ...jvm.FrameInfo) *Thread {
	return &Thread{vm: vm, Name: name, frames: append([]jvm.FrameInfo(nil), frames...)}
}

// Push makes f the innermost frame.
func (t *Thread) Push(f jvm.FrameInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append([]jvm.FrameInfo{f}, t.frames...)
}

// Frames returns a copy of the stack, innermost first.
func (t *Thread) Frames() []jvm.FrameInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]jvm.FrameInfo(nil), t.frames...)
}

// GetStringUTFChars implements jvm.Env.
func (t *Thread) GetStringUTFChars(s jvm.String) []byte {
	if s == 0 {
		return nil
	}
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return t.vm.strings[s]
}

// ReleaseStringUTFChars implements jvm.Env.
func (t *Thread) ReleaseStringUTFChars(s jvm.String, chars []byte) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.vm.released++
}

// GetArrayLength implements jvm.Env.
func (t *Thread) GetArrayLength(a jvm.ByteArray) int {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return len(t.vm.bytes[a])
}

// GetByteArrayElements implements jvm.Env.
func (t *Thread) GetByteArrayElements(a jvm.ByteArray) []byte {
	if a == 0 {
		return nil
	}
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return t.vm.bytes[a]
}

// ReleaseByteArrayElements implements jvm.Env.
func (t *Thread) ReleaseByteArrayElements(a jvm.ByteArray, elems []byte, mode int) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	t.vm.released++
}
