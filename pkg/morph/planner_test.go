package morph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mig(actions ...Action) Migration {
	return Migration{Actions: actions}
}

func TestPlannerDirectEdge(t *testing.T) {
	p := NewPlanner()
	p.Register("v1", "v2", mig(AddField{Path: Root(), Name: "a", Default: Literal{Value: Int32(0)}}))

	plan, err := p.Plan("v1", "v2")
	require.NoError(t, err)
	assert.Len(t, plan.Actions, 1)
}

func TestPlannerComposesShortestPath(t *testing.T) {
	p := NewPlanner()
	p.Register("v1", "v2", mig(AddField{Path: Root(), Name: "a", Default: Literal{Value: Int32(1)}}))
	p.Register("v2", "v3", mig(AddField{Path: Root(), Name: "b", Default: Literal{Value: Int32(2)}}))
	p.Register("v1", "v3", mig(
		AddField{Path: Root(), Name: "a", Default: Literal{Value: Int32(1)}},
		AddField{Path: Root(), Name: "b", Default: Literal{Value: Int32(2)}},
	))

	plan, err := p.Plan("v1", "v3")
	require.NoError(t, err)

	// Applying the composed plan reshapes a v1 document into v3's shape.
	out, err := plan.Run(NewRecord())
	require.NoError(t, err)
	rec := out.(*Record)
	_, hasA := rec.Get("a")
	_, hasB := rec.Get("b")
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestPlannerMultiHop(t *testing.T) {
	p := NewPlanner()
	p.Register("v1", "v2", mig(AddField{Path: Root(), Name: "a", Default: Literal{Value: Int32(1)}}))
	p.Register("v2", "v3", mig(Rename{Path: Root(), From: "a", To: "b"}))

	plan, err := p.Plan("v1", "v3")
	require.NoError(t, err)
	assert.Len(t, plan.Actions, 2)

	out, err := plan.Run(NewRecord())
	require.NoError(t, err)
	assert.True(t, Equal(out, NewRecord(F("b", Int32(1)))))
}

func TestPlannerNoPath(t *testing.T) {
	p := NewPlanner()
	p.Register("v1", "v2", mig())

	_, err := p.Plan("v2", "v1")
	require.Error(t, err)
	assert.Equal(t, ErrPlanner, TypeOf(err))
}

func TestPlannerToleratesCycles(t *testing.T) {
	p := NewPlanner()
	p.Register("v1", "v2", mig())
	p.Register("v2", "v1", mig())
	p.Register("v2", "v3", mig(AddField{Path: Root(), Name: "x", Default: Literal{Value: Int32(0)}}))

	plan, err := p.Plan("v1", "v3")
	require.NoError(t, err)
	assert.Len(t, plan.Actions, 1)
}

func TestPlannerIdentity(t *testing.T) {
	p := NewPlanner()
	plan, err := p.Plan("v1", "v1")
	require.NoError(t, err)
	assert.Empty(t, plan.Actions)
}
