package bindings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/soomfon-deck/internal/actions"
	"github.com/seagrayinc/soomfon-deck/internal/engine"
	"github.com/seagrayinc/soomfon-deck/internal/input"
)

type fakeExecutor struct {
	executed []actions.Action
	result   engine.Result
}

func (f *fakeExecutor) Execute(_ context.Context, a actions.Action) engine.Result {
	f.executed = append(f.executed, a)
	res := f.result
	res.ActionID = a.ID
	return res
}

func mediaAction(id string, control actions.MediaControl) actions.Action {
	return actions.Action{
		ID:    id,
		Kind:  actions.Media,
		Media: &actions.MediaConfig{Control: control},
	}
}

func binding(id string, el input.ElementType, idx int, trig input.EventType, a actions.Action) Binding {
	return Binding{ID: id, Element: el, Index: idx, Trigger: trig, Action: a}
}

func pressEvent(el input.ElementType, idx int) input.Event {
	return input.Event{Element: el, Index: idx, Type: input.Press, Time: time.Now()}
}

func TestLoadAndLookup(t *testing.T) {
	r := NewRegistry(&fakeExecutor{}, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 0, input.Press, mediaAction("a1", actions.MediaPlayPause)),
		binding("b2", input.LCDButton, 0, input.LongPress, mediaAction("a2", actions.MediaStop)),
		binding("b3", input.Encoder, 1, input.RotateCW, mediaAction("a3", actions.MediaVolumeUp)),
	}))
	assert.Equal(t, 3, r.Len())

	b, ok := r.Lookup(input.LCDButton, 0, input.Press)
	require.True(t, ok)
	assert.Equal(t, "b1", b.ID)

	b, ok = r.Get("b2")
	require.True(t, ok)
	assert.Equal(t, input.LongPress, b.Trigger)

	_, ok = r.Lookup(input.LCDButton, 1, input.Press)
	assert.False(t, ok)

	both := r.ForElement(input.LCDButton, 0)
	assert.Len(t, both, 2)
}

func TestLoadReplacesPreviousSet(t *testing.T) {
	r := NewRegistry(&fakeExecutor{}, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 0, input.Press, mediaAction("a1", actions.MediaPlayPause)),
	}))
	require.NoError(t, r.Load([]Binding{
		binding("b2", input.Button, 2, input.Press, mediaAction("a2", actions.MediaMute)),
	}))

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("b1")
	assert.False(t, ok, "old set fully replaced")
	_, ok = r.Lookup(input.Button, 2, input.Press)
	assert.True(t, ok)
}

func TestLoadDuplicateTupleLastWins(t *testing.T) {
	r := NewRegistry(&fakeExecutor{}, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 3, input.Press, mediaAction("a1", actions.MediaPlayPause)),
		binding("b2", input.LCDButton, 3, input.Press, mediaAction("a2", actions.MediaNext)),
	}))

	assert.Equal(t, 1, r.Len())
	b, ok := r.Lookup(input.LCDButton, 3, input.Press)
	require.True(t, ok)
	assert.Equal(t, "b2", b.ID)
	_, ok = r.Get("b1")
	assert.False(t, ok, "shadowed binding is dropped entirely")
}

func TestLoadRejectsInvalidAction(t *testing.T) {
	r := NewRegistry(&fakeExecutor{}, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 0, input.Press, mediaAction("a1", actions.MediaPlayPause)),
	}))

	// Kind says media but no media config: the whole load is rejected.
	bad := Binding{ID: "b2", Element: input.Button, Index: 0, Trigger: input.Press,
		Action: actions.Action{ID: "a2", Kind: actions.Media}}
	err := r.Load([]Binding{bad})
	require.ErrorIs(t, err, actions.ErrConfigMissing)

	// Previous set still active.
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("b1")
	assert.True(t, ok)
}

func TestLoadAssignsMissingIDs(t *testing.T) {
	r := NewRegistry(&fakeExecutor{}, nil)
	a := mediaAction("", actions.MediaPlayPause)
	require.NoError(t, r.Load([]Binding{
		{Element: input.LCDButton, Index: 0, Trigger: input.Press, Action: a},
	}))

	b, ok := r.Lookup(input.LCDButton, 0, input.Press)
	require.True(t, ok)
	assert.NotEmpty(t, b.ID)
	assert.NotEmpty(t, b.Action.ID)
}

func TestDispatchExecutesMatch(t *testing.T) {
	exec := &fakeExecutor{result: engine.Result{Status: engine.Success}}
	r := NewRegistry(exec, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.Encoder, 0, input.RotateCW, mediaAction("a1", actions.MediaVolumeUp)),
	}))

	ev := input.Event{Element: input.Encoder, Index: 0, Type: input.RotateCW, Delta: 1}
	res := r.Dispatch(context.Background(), ev)
	require.NotNil(t, res)
	assert.Equal(t, engine.Success, res.Status)
	assert.Equal(t, "a1", res.ActionID)

	require.Len(t, exec.executed, 1)
	assert.Equal(t, actions.MediaVolumeUp, exec.executed[0].Media.Control)
}

func TestDispatchUnboundEvent(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRegistry(exec, nil)

	res := r.Dispatch(context.Background(), pressEvent(input.Button, 1))
	assert.Nil(t, res)
	assert.Empty(t, exec.executed)
}

func TestDispatchNotifiesObserversInOrder(t *testing.T) {
	exec := &fakeExecutor{result: engine.Result{Status: engine.Success}}
	r := NewRegistry(exec, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 0, input.Press, mediaAction("a1", actions.MediaPlayPause)),
	}))

	var first, second []NoticeKind
	r.Observe(func(n Notice) { first = append(first, n.Kind) })
	r.Observe(func(n Notice) { second = append(second, n.Kind) })

	r.Dispatch(context.Background(), pressEvent(input.LCDButton, 0))
	assert.Equal(t, []NoticeKind{Matched, Executed}, first)
	assert.Equal(t, []NoticeKind{Matched, Executed}, second)

	first, second = nil, nil
	r.Dispatch(context.Background(), pressEvent(input.LCDButton, 5))
	assert.Equal(t, []NoticeKind{NotFound}, first)
	assert.Equal(t, []NoticeKind{NotFound}, second)
}

func TestDispatchExecutedNoticeCarriesResult(t *testing.T) {
	exec := &fakeExecutor{result: engine.Result{Status: engine.Failure, Error: "boom"}}
	r := NewRegistry(exec, nil)
	require.NoError(t, r.Load([]Binding{
		binding("b1", input.LCDButton, 0, input.Press, mediaAction("a1", actions.MediaPlayPause)),
	}))

	var got *engine.Result
	r.Observe(func(n Notice) {
		if n.Kind == Executed {
			got = n.Result
		}
	})

	res := r.Dispatch(context.Background(), pressEvent(input.LCDButton, 0))
	require.NotNil(t, res)
	require.NotNil(t, got)
	assert.Equal(t, engine.Failure, got.Status)
	assert.Equal(t, "boom", got.Error)
}
