package hooks

import (
	"time"

	"github.com/zboralski/raspguard/internal/jvm"
	glog "github.com/zboralski/raspguard/internal/log"
	"github.com/zboralski/raspguard/internal/metrics"
	"github.com/zboralski/raspguard/internal/policy"
)

// Config wires a Guard to its collaborators.
type Config struct {
	TI        jvm.TI            // metadata and stack walks; nil leaves the guard blind
	Policy    *policy.Evaluator // defaults to the embedded policy
	Logger    *glog.Logger      // defaults to glog.Default()
	Metrics   *metrics.Metrics  // optional
	MaxFrames int               // stack depth on block, 1..MaxStackFrames
	Now       func() time.Time

	// OnAudit, if set, receives every audit record after it is logged.
	OnAudit func(AuditRecord)
}

// Guard owns the watched symbols and implements the interceptor and the
// trampolines.
type Guard struct {
	ti       jvm.TI
	policy   *policy.Evaluator
	log      *glog.Logger
	metrics  *metrics.Metrics
	stack    *StackReporter
	now      func() time.Time
	onAudit  func(AuditRecord)
	create   *Symbol
	forkExec *Symbol
	registry *Registry
}

// New creates a Guard with both watched symbols registered.
func New(cfg Config) *Guard {
	if cfg.Logger == nil {
		cfg.Logger = glog.Default()
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.MustNew(policy.Default())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	g := &Guard{
		ti:      cfg.TI,
		policy:  cfg.Policy,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		onAudit: cfg.OnAudit,
	}
	g.stack = NewStackReporter(cfg.TI, cfg.Logger, cfg.MaxFrames)
	g.create = &Symbol{Target: ProcessImplCreate, Trampoline: jvm.ProcessImplCreateFunc(g.ProcessImplCreate)}
	g.forkExec = &Symbol{Target: UNIXProcessForkAndExec, Trampoline: jvm.ForkAndExecFunc(g.UNIXProcessForkAndExec)}
	g.registry = NewRegistry(g.create, g.forkExec)
	return g
}

// Registry returns the watched symbols.
func (g *Guard) Registry() *Registry {
	return g.registry
}

// Reset clears every captured original entry.
func (g *Guard) Reset() {
	g.registry.Reset()
}
