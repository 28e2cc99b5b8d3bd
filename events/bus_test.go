package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedBus() (*Bus, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return NewBus(WithLogger(zap.New(core))), logs
}

func recorder(order *[]string, name string) Handler {
	return func(context.Context, *Event) error {
		*order = append(*order, name)
		return nil
	}
}

func TestHandleBubblesToAncestors(t *testing.T) {
	bus, _ := newObservedBus()
	var order []string

	lo.Must(bus.On("notice", recorder(&order, "notice")))
	lo.Must(bus.On("notice.group_ban", recorder(&order, "group_ban")))
	lo.Must(bus.On("notice.group_ban.ban", recorder(&order, "ban")))
	lo.Must(bus.On("notice.group_ban.lift_ban", recorder(&order, "lift_ban")))

	canceled := bus.Handle(context.Background(), "notice.group_ban.ban")
	assert.False(t, canceled)
	assert.Equal(t, []string{"ban", "group_ban", "notice"}, order)
}

func TestStopPropagationHaltsBubbling(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	var order []string

	lo.Must(bus.On("notice.group_ban", recorder(&order, "H1")))
	lo.Must(bus.On("notice.group_ban.ban", func(_ context.Context, evt *Event) error {
		order = append(order, "H2")
		evt.StopPropagation()
		return nil
	}))
	lo.Must(bus.On("notice.group_ban.ban", recorder(&order, "H3")))

	as.True(bus.Handle(context.Background(), "notice.group_ban.ban"))
	as.Equal([]string{"H2"}, order, "neither the sibling nor the parent should run")

	order = nil
	as.False(bus.Handle(context.Background(), "notice.group_ban"))
	as.Equal([]string{"H1"}, order)
}

func TestEventSharedAcrossBubbling(t *testing.T) {
	bus, _ := newObservedBus()
	var seen []*Event

	capture := func(_ context.Context, evt *Event) error {
		seen = append(seen, evt)
		return nil
	}
	lo.Must(bus.On("message", capture))
	lo.Must(bus.On("message.group", capture))

	bus.Handle(context.Background(), "message.group", map[string]any{"group_id": int64(1)})
	require.Len(t, seen, 2)
	assert.Same(t, seen[0], seen[1])
	assert.Equal(t, "message.group", seen[0].Path)
	assert.Equal(t, int64(1), seen[0].Payload()["group_id"])
}

func TestFailingHandlerIsRemoved(t *testing.T) {
	as := assert.New(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := NewBus(WithLogger(zap.New(core)))

	h1Calls, h2Calls := 0, 0
	lo.Must(bus.On("request.friend", func(context.Context, *Event) error {
		h1Calls++
		return errors.New("boom")
	}))
	lo.Must(bus.On("request.friend", func(context.Context, *Event) error {
		h2Calls++
		return nil
	}))

	as.False(bus.Handle(context.Background(), "request.friend"))
	as.Equal(1, h1Calls)
	as.Equal(1, h2Calls)
	as.Equal(1, logs.Len(), "failure should be logged")

	bus.Handle(context.Background(), "request.friend")
	as.Equal(1, h1Calls, "failed handler must not fire again")
	as.Equal(2, h2Calls)
}

func TestPanickingHandlerIsRemoved(t *testing.T) {
	bus, _ := newObservedBus()
	calls := 0
	lo.Must(bus.On("meta_event.heartbeat", func(context.Context, *Event) error {
		calls++
		panic("bad handler")
	}))
	after := 0
	lo.Must(bus.On("meta_event", func(context.Context, *Event) error {
		after++
		return nil
	}))

	assert.NotPanics(t, func() { bus.Handle(context.Background(), "meta_event.heartbeat") })
	bus.Handle(context.Background(), "meta_event.heartbeat")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, after, "bubbling continues after a failure")
}

func TestFailureOnlyRemovesFromOwnNode(t *testing.T) {
	bus, _ := newObservedBus()
	calls := 0
	flaky := func(_ context.Context, evt *Event) error {
		calls++
		if evt.Path == "message.private" {
			return errors.New("no private")
		}
		return nil
	}
	lo.Must(bus.On("message.private", flaky))
	lo.Must(bus.On("message.group", flaky))

	bus.Handle(context.Background(), "message.private")
	bus.Handle(context.Background(), "message.group")
	bus.Handle(context.Background(), "message.private")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, bus.Taxonomy().Resolve("message.private").Len())
	assert.Equal(t, 1, bus.Taxonomy().Resolve("message.group").Len())
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	bus, _ := newObservedBus()
	calls := 0
	lo.Must(bus.Once("notice.friend_add", func(context.Context, *Event) error {
		calls++
		return nil
	}))

	bus.Handle(context.Background(), "notice.friend_add")
	bus.Handle(context.Background(), "notice.friend_add")
	assert.Equal(t, 1, calls)
	assert.Empty(t, bus.once, "side table entry should be consumed")
}

func TestOffCancelsOnce(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	calls := 0
	h := lo.Must(bus.Once("notice.friend_add", func(context.Context, *Event) error {
		calls++
		return nil
	}))

	as.True(bus.Off("notice.friend_add", h))
	as.False(bus.Off("notice.friend_add", h), "second off is a no-op")
	bus.Handle(context.Background(), "notice.friend_add")
	as.Zero(calls)
	as.Empty(bus.once)
}

func TestSameHandlerRegisteredTwice(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	calls := 0
	h := func(context.Context, *Event) error {
		calls++
		return nil
	}

	first := lo.Must(bus.On("message.group", h))
	second := lo.Must(bus.On("message.group", h))
	as.NotEqual(first, second)

	bus.Handle(context.Background(), "message.group")
	as.Equal(2, calls)

	as.True(bus.Off("message.group", first))
	bus.Handle(context.Background(), "message.group")
	as.Equal(3, calls)
}

func TestOffDuringDispatchSkipsPendingHandler(t *testing.T) {
	bus, _ := newObservedBus()
	var order []string
	var second Handle

	lo.Must(bus.On("api.response", func(context.Context, *Event) error {
		order = append(order, "first")
		bus.Off("api.response", second)
		lo.Must(bus.On("api.response", recorder(&order, "late")))
		return nil
	}))
	second = lo.Must(bus.On("api.response", recorder(&order, "second")))

	bus.Handle(context.Background(), "api.response")
	assert.Equal(t, []string{"first"}, order, "removed handler skipped, new one waits")

	order = nil
	bus.Handle(context.Background(), "api.response")
	assert.Equal(t, []string{"first", "late"}, order)
}

func TestUnknownPathFallsBackToAncestor(t *testing.T) {
	as := assert.New(t)
	bus, logs := newObservedBus()
	calls := 0
	lo.Must(bus.On("notice.group_ban", func(_ context.Context, evt *Event) error {
		calls++
		as.Equal("notice.group_ban", evt.Path)
		return nil
	}))

	bus.Handle(context.Background(), "notice.group_ban.forever")
	as.Equal(1, calls)
	as.Equal(1, logs.FilterMessageSnippet("not supported").Len())
}

func TestRootHandlersNeverFire(t *testing.T) {
	bus, logs := newObservedBus()
	calls := 0
	lo.Must(bus.On("bogus", func(context.Context, *Event) error {
		calls++
		return nil
	}))

	bus.Handle(context.Background(), "bogus")
	bus.Handle(context.Background(), "message.group")
	assert.Zero(t, calls)
	assert.GreaterOrEqual(t, logs.FilterMessageSnippet("root").Len(), 1)
}

func TestNilHandlerRejected(t *testing.T) {
	bus, _ := newObservedBus()
	_, err := bus.On("message", nil)
	assert.Error(t, err)
	_, err = bus.Once("message", nil)
	assert.Error(t, err)
}

func TestConcurrentDispatchAndRegistration(t *testing.T) {
	bus, _ := newObservedBus()
	var mu sync.Mutex
	calls := 0
	onceCalls := 0
	lo.Must(bus.Once("message.group", func(context.Context, *Event) error {
		mu.Lock()
		onceCalls++
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h := lo.Must(bus.On("message", func(context.Context, *Event) error {
				mu.Lock()
				calls++
				mu.Unlock()
				return nil
			}))
			bus.Off("message", h)
		}()
		go func() {
			defer wg.Done()
			bus.Handle(context.Background(), "message.group")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, onceCalls)
	assert.Equal(t, 0, bus.Taxonomy().Resolve("message").Len())
}

func TestBindOnceAllFiresFirstEventOnly(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	var order []string

	handles, err := bus.Bind(BindOnceAll, map[string]Handler{
		"notice.group_increase": recorder(&order, "joined"),
		"notice.group_decrease": recorder(&order, "left"),
	})
	require.NoError(t, err)
	as.Len(handles, 2)

	bus.Handle(context.Background(), "notice.group_decrease.kick")
	bus.Handle(context.Background(), "notice.group_increase.approve")
	bus.Handle(context.Background(), "notice.group_decrease.leave")
	as.Equal([]string{"left"}, order)
	as.Zero(bus.Unbind(handles), "the whole group is already gone")
}

func TestBindOnceAllRemovesAncestorSibling(t *testing.T) {
	bus, _ := newObservedBus()
	var order []string

	lo.Must(bus.Bind(BindOnceAll, map[string]Handler{
		"message":       recorder(&order, "message"),
		"message.group": recorder(&order, "group"),
	}))

	bus.Handle(context.Background(), "message.group")
	bus.Handle(context.Background(), "message.private")
	assert.Equal(t, []string{"group"}, order)
}

func TestBindOnceAndUnbind(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	var order []string

	once := lo.Must(bus.Bind(BindOnce, map[string]Handler{
		"request.friend": recorder(&order, "friend"),
		"request.group":  recorder(&order, "group"),
	}))
	bus.Handle(context.Background(), "request.friend")
	bus.Handle(context.Background(), "request.friend")
	as.Equal([]string{"friend"}, order)
	as.Equal(1, bus.Unbind(once), "only the unfired group handler is left")

	order = nil
	on := lo.Must(bus.Bind(BindOn, map[string]Handler{"request.friend": recorder(&order, "on")}))
	bus.Handle(context.Background(), "request.friend")
	bus.Handle(context.Background(), "request.friend")
	as.Equal([]string{"on", "on"}, order)
	as.Equal(1, bus.Unbind(on))
}

func TestBindRejectsNilWithoutRegistering(t *testing.T) {
	as := assert.New(t)
	bus, _ := newObservedBus()
	var order []string

	_, err := bus.Bind(BindOn, map[string]Handler{
		"message.group": recorder(&order, "group"),
		"message":       nil,
	})
	as.Error(err)
	bus.Handle(context.Background(), "message.group")
	as.Empty(order)

	_, err = bus.Bind(BindMode(9), map[string]Handler{})
	as.ErrorContains(err, "BindMode(9)")
}
