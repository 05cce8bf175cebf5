// Package agent manages the agent lifecycle: load or attach, and unload.
//
// Load and attach run the same initialization. Each host step is attempted
// on its own and every failure is logged; a failed initialization leaves the
// agent inert but never stops the host.
package agent

import (
	"errors"
	"strings"
	"sync"

	"github.com/zboralski/raspguard/internal/hooks"
	"github.com/zboralski/raspguard/internal/jvm"
	glog "github.com/zboralski/raspguard/internal/log"
	"github.com/zboralski/raspguard/internal/metrics"
	"github.com/zboralski/raspguard/internal/policy"
)

// Initialization steps, as reported in InitError.
const (
	StepGetEnv       = "GetEnv"
	StepCapabilities = "AddCapabilities"
	StepCallbacks    = "SetEventCallbacks"
	StepNotification = "SetEventNotificationMode"
)

// InitError reports a failed initialization step.
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string {
	return e.Step + " failed: " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Config overrides the collaborators an Agent would otherwise build from its
// options. Zero values are filled in from the options string.
type Config struct {
	Logger  *glog.Logger
	Metrics *metrics.Metrics
	OnAudit func(hooks.AuditRecord)
}

// Agent is one loaded instance.
type Agent struct {
	mu      sync.Mutex
	cfg     Config
	log     *glog.Logger
	metrics *metrics.Metrics
	ti      jvm.TI
	guard   *hooks.Guard
	active  bool
}

// New creates an unloaded agent.
func New(cfg Config) *Agent {
	return &Agent{cfg: cfg}
}

// Load initializes the agent against vm. It returns JNI_OK unless the tool
// interface or the callback registration is unavailable, in which case the
// agent is inert and JNI_ERR is returned along with the joined step errors.
func (a *Agent) Load(vm jvm.VM, options string) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts, optErr := ParseOptions(options)
	a.setup(opts)
	a.log.Logf("Agent_OnLoad called")
	if optErr != nil {
		a.log.Failure("parse agent options", optErr)
	}

	ti, err := vm.GetEnv(jvm.JVMTI_VERSION_1_2)
	if err != nil || ti == nil {
		if err == nil {
			err = jvm.ErrInvalidEnvironment
		}
		a.log.Logf("Unable to get JVMTI env, rc=%v", err)
		return jvm.JNI_ERR, &InitError{Step: StepGetEnv, Err: err}
	}
	a.ti = ti

	evaluator := a.loadPolicy(opts.PolicyPath)
	a.guard = hooks.New(hooks.Config{
		TI:        ti,
		Policy:    evaluator,
		Logger:    a.log,
		Metrics:   a.metrics,
		MaxFrames: opts.MaxFrames,
		OnAudit:   a.cfg.OnAudit,
	})

	var errs []error
	fatal := false
	step := func(name string, err error) {
		if err == nil {
			return
		}
		a.log.Logf("%s failed: %v", name, err)
		errs = append(errs, &InitError{Step: name, Err: err})
	}

	step(StepCapabilities, ti.AddCapabilities(jvm.Capabilities{CanGenerateNativeMethodBindEvents: true}))
	if err := ti.SetNativeMethodBindCallback(a.guard.OnNativeMethodBind); err != nil {
		step(StepCallbacks, err)
		fatal = true
	}
	step(StepNotification, ti.SetEventNotificationMode(true, jvm.EventNativeMethodBind))

	if len(errs) > 0 {
		a.log.Logf("WARNING: agent is not intercepting process creation; commands run unmonitored")
		if fatal {
			return jvm.JNI_ERR, errors.Join(errs...)
		}
		return jvm.JNI_OK, errors.Join(errs...)
	}

	a.active = true
	a.log.Logf("JVMTI agent loaded OK")
	return jvm.JNI_OK, nil
}

// Attach initializes the agent in a running VM. It is identical to Load.
func (a *Agent) Attach(vm jvm.VM, options string) (int32, error) {
	return a.Load(vm, options)
}

// Unload forgets the captured originals and the tool interface. Trampolines
// still linked by the host fail closed from then on.
func (a *Agent) Unload() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.log != nil {
		a.log.Logf("Agent_OnUnload called")
	}
	if a.guard != nil {
		a.guard.Reset()
	}
	a.ti = nil
	a.active = false
}

// Active reports whether the last initialization completed every step.
func (a *Agent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Guard returns the interceptor and trampolines, or nil before Load.
func (a *Agent) Guard() *hooks.Guard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.guard
}

// Metrics returns the agent counters.
func (a *Agent) Metrics() *metrics.Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// Logger returns the agent logger, or nil before Load.
func (a *Agent) Logger() *glog.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.log
}

func (a *Agent) setup(opts Options) {
	switch {
	case a.cfg.Logger != nil:
		a.log = a.cfg.Logger
	case opts.Name != "" || opts.LogDir != "":
		a.log = glog.New(glog.Options{Name: opts.Name, Dir: opts.LogDir})
	default:
		a.log = glog.Default()
	}

	a.metrics = a.cfg.Metrics
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
}

// loadPolicy reads the configured policy, falling back to the embedded one.
func (a *Agent) loadPolicy(path string) *policy.Evaluator {
	if path == "" {
		return policy.MustNew(policy.Default())
	}
	cfg, err := policy.Load(path)
	if err == nil {
		var ev *policy.Evaluator
		if ev, err = policy.New(cfg); err == nil {
			a.log.Logf("Policy loaded from %s: %s", path, strings.Join(ev.Keywords(), ","))
			return ev
		}
	}
	a.log.Logf("Policy %s unusable, using built-in keywords: %v", path, err)
	return policy.MustNew(policy.Default())
}

// defaultAgent backs the process-wide entry points.
var defaultAgent = New(Config{})

// OnLoad is the load-time entry point.
func OnLoad(vm jvm.VM, options string) int32 {
	rc, _ := defaultAgent.Load(vm, options)
	return rc
}

// OnAttach is the attach-time entry point.
func OnAttach(vm jvm.VM, options string) int32 {
	rc, _ := defaultAgent.Attach(vm, options)
	return rc
}

// OnUnload is the unload entry point.
func OnUnload() {
	defaultAgent.Unload()
}
