package sim

import "github.com/zboralski/raspguard/internal/jvm"

// Process-spawning natives as declared by the JDK.
var (
	ProcessImplCreate = Method{
		Class:     "Ljava/lang/ProcessImpl;",
		Name:      "create",
		Signature: "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;[JZ)J",
		Native:    true,
	}
	UNIXProcessForkAndExec = Method{
		Class:     "Ljava/lang/UNIXProcess;",
		Name:      "forkAndExec",
		Signature: "(I[B[B[BI[BI[B[IZ)I",
		Native:    true,
	}
)

// ExecStack defines the usual Runtime.exec call chain below caller and
// returns it innermost first, ready for NewThread.
func (vm *VM) ExecStack(caller Method) []jvm.FrameInfo {
	chain := []struct {
		m   Method
		loc jvm.Location
	}{
		{Method{Class: "Ljava/lang/ProcessBuilder;", Name: "start", Signature: "()Ljava/lang/Process;"}, 214},
		{Method{Class: "Ljava/lang/Runtime;", Name: "exec", Signature: "([Ljava/lang/String;[Ljava/lang/String;Ljava/io/File;)Ljava/lang/Process;"}, 16},
		{Method{Class: "Ljava/lang/Runtime;", Name: "exec", Signature: "(Ljava/lang/String;)Ljava/lang/Process;"}, 5},
		{caller, 42},
	}
	frames := make([]jvm.FrameInfo, 0, len(chain))
	for _, c := range chain {
		frames = append(frames, jvm.FrameInfo{Method: vm.DefineMethod(c.m), Location: c.loc})
	}
	return frames
}
