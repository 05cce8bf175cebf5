package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/raspguard/internal/agent"
	"github.com/zboralski/raspguard/internal/decode"
	"github.com/zboralski/raspguard/internal/hooks"
	"github.com/zboralski/raspguard/internal/jvm"
	"github.com/zboralski/raspguard/internal/jvm/sim"
	glog "github.com/zboralski/raspguard/internal/log"
	"github.com/zboralski/raspguard/internal/metrics"
	"github.com/zboralski/raspguard/internal/trace"
	"github.com/zboralski/raspguard/internal/ui/colorize"
)

const spawnHelper = "/usr/lib/jvm/lib/jspawnhelper"

// caller is the application frame below Runtime.exec in simulated stacks.
var caller = sim.Method{Class: "Lcom/example/app/Shell;", Name: "run", Signature: "(Ljava/lang/String;)V"}

// spawner stands in for the real natives. It hands out fake pids.
type spawner struct {
	pid atomic.Int64
}

func (s *spawner) create(jvm.Env, jvm.Class, jvm.String, jvm.String, jvm.String, jvm.LongArray, bool) int64 {
	return s.pid.Add(1)
}

func (s *spawner) forkAndExec(jvm.Env, jvm.Object, int32, jvm.ByteArray, jvm.ByteArray, jvm.ByteArray, int32, jvm.ByteArray, int32, jvm.ByteArray, jvm.IntArray, bool) int32 {
	return int32(s.pid.Add(1))
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", concurrency)
	}
	if policyPath != "" {
		// the agent falls back to built-in keywords; the CLI should not
		if _, err := loadEvaluator(); err != nil {
			return err
		}
	}

	var console io.Writer = io.Discard
	if verbose {
		console = os.Stderr
	}
	logger := glog.New(glog.Options{Dir: logDir, Console: console})
	defer logger.Close()

	collector := trace.NewCollector()
	m := metrics.New()
	a := agent.New(agent.Config{Logger: logger, Metrics: m, OnAudit: collector.Audit})

	vm := sim.New()
	if _, err := a.Load(vm, agentOptions()); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	defer a.Unload()

	// first invocation links the natives
	spawn := &spawner{}
	spawn.pid.Store(1000)
	boot := vm.NewThread("main")
	create, ok := vm.Link(boot, vm.DefineMethod(sim.ProcessImplCreate), jvm.ProcessImplCreateFunc(spawn.create)).(jvm.ProcessImplCreateFunc)
	if !ok {
		return errors.New("ProcessImpl.create linked to an unexpected entry")
	}
	forkAndExec, ok := vm.Link(boot, vm.DefineMethod(sim.UNIXProcessForkAndExec), jvm.ForkAndExecFunc(spawn.forkAndExec)).(jvm.ForkAndExecFunc)
	if !ok {
		return errors.New("UNIXProcess.forkAndExec linked to an unexpected entry")
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, command := range args {
		i, command := i, command
		g.Go(func() error {
			thread := vm.NewThread(fmt.Sprintf("exec-%d-create", i), vm.ExecStack(caller)...)
			ret := create(thread, 0, vm.NewString(command), 0, 0, 0, false)
			e := trace.NewEvent(i, hooks.ProcessImplCreate.Name, trace.Create, command)
			e.Result = ret
			collector.Add(e, ret == hooks.CreateFailed)
			return nil
		})
		g.Go(func() error {
			thread := vm.NewThread(fmt.Sprintf("exec-%d-fork", i), vm.ExecStack(caller)...)
			helper, prog, argBlock, argc := forkArgs(vm, command)
			text := decode.DecodeForkExec(thread, helper, prog, argBlock)
			ret := forkAndExec(thread, 0, 1, helper, prog, argBlock, argc, 0, 0, 0, vm.NewIntArray([]int32{0, 1, 2}), false)
			e := trace.NewEvent(i, hooks.UNIXProcessForkAndExec.Name, trace.ForkExec, text.Text())
			e.Result = int64(ret)
			collector.Add(e, ret == hooks.ForkAndExecFailed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range collector.Events() {
		fmt.Fprintln(out, formatEvent(e))
	}
	summary, err := summarize(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, summary)
	if path := logger.FilePath(); path != "" {
		fmt.Fprintln(out, colorize.Detail("log: "+path))
	}
	return nil
}

func agentOptions() string {
	var opts []string
	if policyPath != "" {
		opts = append(opts, "policy="+policyPath)
	}
	if maxFrames > 0 {
		opts = append(opts, fmt.Sprintf("frames=%d", maxFrames))
	}
	return strings.Join(opts, ",")
}

// forkArgs lays a command out the way the JDK passes it to forkAndExec: the
// program path, then every later argument NUL-terminated in one block.
func forkArgs(vm *sim.VM, command string) (helper, prog, argBlock jvm.ByteArray, argc int32) {
	fields := strings.Fields(command)
	helper = vm.NewByteArray([]byte(spawnHelper + "\x00"))
	if len(fields) == 0 {
		return helper, 0, 0, 0
	}
	prog = vm.NewByteArray([]byte(fields[0] + "\x00"))

	var block []byte
	for _, f := range fields[1:] {
		block = append(block, f...)
		block = append(block, 0)
	}
	return helper, prog, vm.NewByteArray(block), int32(len(fields) - 1)
}

func formatEvent(e *trace.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d  %s  %-24s %s", e.Index, colorize.Decision(e.Blocked()), colorize.Target(e.Target), colorize.Command(e.Command))

	var notes []string
	notes = append(notes, e.Tags.Strings()...)
	if e.Blocked() {
		if kw := e.Annotations.Get("keyword"); kw != "" {
			notes = append(notes, "keyword="+colorize.Keyword(kw))
		}
		if id := e.Annotations.Get("incident"); id != "" {
			notes = append(notes, "incident="+id)
		}
	} else {
		notes = append(notes, fmt.Sprintf("pid=%d", e.Result))
	}
	b.WriteString("  ")
	b.WriteString(colorize.Detail(strings.Join(notes, " ")))
	return b.String()
}

func summarize(m *metrics.Metrics) (string, error) {
	samples, err := m.Snapshot()
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(samples))
	for _, s := range samples {
		lines = append(lines, fmt.Sprintf("%-72s %g", s.Series, s.Value))
	}
	return colorize.Summary(lines), nil
}
