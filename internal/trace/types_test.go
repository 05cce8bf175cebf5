package trace

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zboralski/raspguard/internal/hooks"
)

func TestTags(t *testing.T) {
	var tags Tags
	tags.Add(Create)
	tags.Add(Block)
	tags.Add(Create)

	assert.Equal(t, Tags{Create, Block}, tags)
	assert.Equal(t, []string{"#create", "#block"}, tags.Strings())
	assert.False(t, tags.Has(Allow))
}

func TestCollectorClaimsAudits(t *testing.T) {
	c := NewCollector()
	id := uuid.New()
	c.Audit(hooks.AuditRecord{ID: id, Target: "ProcessImpl.create", Command: "curl x", Keyword: "curl", Reason: hooks.ReasonPolicy})

	c.Add(NewEvent(1, "ProcessImpl.create", Create, "/bin/ls"), false)
	c.Add(NewEvent(0, "ProcessImpl.create", Create, "curl x"), true)

	events := c.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Index)
	assert.True(t, events[0].Blocked())
	assert.Equal(t, id.String(), events[0].Annotations.Get("incident"))
	assert.Equal(t, "curl", events[0].Annotations.Get("keyword"))
	assert.True(t, events[1].Tags.Has(Allow))
}

func TestCollectorFailClosed(t *testing.T) {
	c := NewCollector()
	c.Audit(hooks.AuditRecord{ID: uuid.New(), Target: "UNIXProcess.forkAndExec", Command: "(null) /bin/ls (null)", Reason: hooks.ReasonOriginalMissing})

	e := NewEvent(0, "UNIXProcess.forkAndExec", ForkExec, "(null) /bin/ls (null)")
	c.Add(e, true)

	assert.True(t, e.Tags.Has(FailClosed))
	assert.Empty(t, e.Annotations.Get("keyword"))
}
