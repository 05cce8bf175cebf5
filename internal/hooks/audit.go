package hooks

import (
	"time"

	"github.com/google/uuid"

	"github.com/zboralski/raspguard/internal/jvm"
	"github.com/zboralski/raspguard/internal/policy"
)

// Reason explains why a call was blocked.
type Reason string

const (
	ReasonPolicy          Reason = "policy"
	ReasonOriginalMissing Reason = "original-missing"
)

// AuditRecord describes one blocked call. It is logged, handed to OnAudit,
// and then dropped.
type AuditRecord struct {
	ID      uuid.UUID
	Time    time.Time
	Target  string
	Command string
	Keyword string // matched keyword, empty unless Reason is ReasonPolicy
	Reason  Reason
	Stack   []Frame
}

// block logs the audit record and stack for a refused call.
func (g *Guard) block(env jvm.Env, sym *Symbol, command, keyword string, reason Reason) {
	rec := AuditRecord{
		ID:      uuid.New(),
		Time:    g.now(),
		Target:  sym.Name,
		Command: command,
		Keyword: keyword,
		Reason:  reason,
	}

	if reason == ReasonOriginalMissing {
		g.log.FailClosed(sym.Name)
		g.metrics.FailClosed(sym.Name)
	}
	g.log.Blocked(rec.Time, command)
	g.log.Logf("incident=%s target=%s reason=%s keyword=%q", rec.ID, rec.Target, rec.Reason, rec.Keyword)
	rec.Stack = g.stack.Report(env)
	g.metrics.Decision(sym.Name, policy.Block.String())

	if g.onAudit != nil {
		g.onAudit(rec)
	}
}
