package events

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sealdice/cqsocket/cqcode"
)

// Handler receives one dispatched event. Returning an error (or panicking)
// unregisters the handler from the node it was attached to.
type Handler func(ctx context.Context, evt *Event) error

// Handle identifies a registration; pass it to Off to unregister.
type Handle string

type entry struct {
	id      Handle
	handler Handler
	removed atomic.Bool
}

// Event is shared by every handler invoked during a single dispatch,
// including handlers reached by bubbling.
type Event struct {
	Path string
	Args []any

	canceled atomic.Bool
}

// StopPropagation prevents the remaining handlers on the current node and
// every ancestor from seeing this event.
func (e *Event) StopPropagation() { e.canceled.Store(true) }

func (e *Event) IsCanceled() bool { return e.canceled.Load() }

// Arg returns the i-th dispatch argument or nil.
func (e *Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Payload returns the decoded frame for protocol events.
func (e *Event) Payload() map[string]any {
	m, _ := e.Arg(0).(map[string]any)
	return m
}

// Tags returns the parsed message segments of message events.
func (e *Event) Tags() cqcode.Message {
	for _, a := range e.Args {
		if m, ok := a.(cqcode.Message); ok {
			return m
		}
	}
	return nil
}

type Option func(*Bus)

func WithLogger(log *zap.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// Bus dispatches events along the taxonomy with bubbling and cancellation.
type Bus struct {
	tax *Taxonomy
	log *zap.Logger
	seq atomic.Uint64

	onceMu sync.Mutex
	once   map[Handle]Handle
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{once: map[Handle]Handle{}}
	for _, opt := range opts {
		opt(b)
	}
	b.tax = NewTaxonomy(b.log)
	return b
}

func (b *Bus) Taxonomy() *Taxonomy { return b.tax }

func (b *Bus) logger() *zap.SugaredLogger {
	if b.log != nil {
		return b.log.Sugar()
	}
	return zap.L().Named("events").Sugar()
}

func (b *Bus) nextHandle() Handle {
	return Handle(fmt.Sprintf("handler-%d", b.seq.Add(1)))
}

// On appends h to the handler list of path. The same function may be
// registered more than once; each registration gets its own handle.
func (b *Bus) On(path string, h Handler) (Handle, error) {
	if h == nil {
		return "", errors.New("event handler must not be nil")
	}
	id := b.nextHandle()
	b.attach(path, id, h)
	return id, nil
}

// Once registers h to fire at most one time. The returned handle can be
// passed to Off before the first dispatch to cancel it.
func (b *Bus) Once(path string, h Handler) (Handle, error) {
	if h == nil {
		return "", errors.New("event handler must not be nil")
	}

	id, wid := b.nextHandle(), b.nextHandle()
	var fired atomic.Bool
	wrapper := func(ctx context.Context, evt *Event) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		b.Off(path, id)
		return h(ctx, evt)
	}

	b.onceMu.Lock()
	b.once[id] = wid
	b.onceMu.Unlock()

	b.attach(path, wid, wrapper)
	return id, nil
}

func (b *Bus) attach(path string, id Handle, h Handler) {
	n := b.tax.Resolve(path)
	if n.IsRoot() {
		b.logger().Warnf("handler for %q attached to the root and will never fire", path)
	}
	n.add(&entry{id: id, handler: h})
}

// Off removes a registration from the node path resolves to. It reports
// whether anything was removed.
func (b *Bus) Off(path string, handle Handle) bool {
	n := b.tax.Resolve(path)

	b.onceMu.Lock()
	defer b.onceMu.Unlock()

	if wid, ok := b.once[handle]; ok {
		if !n.remove(wid) {
			return false
		}
		delete(b.once, handle)
		return true
	}
	return n.remove(handle)
}

// Handle dispatches to the node path resolves to and then to each ancestor
// below the root. It reports whether a handler stopped propagation. Handler
// failures are logged, never returned.
func (b *Bus) Handle(ctx context.Context, path string, args ...any) bool {
	return b.dispatch(ctx, b.tax.Resolve(path), args)
}

func (b *Bus) HandleSegments(ctx context.Context, segments []string, args ...any) bool {
	return b.dispatch(ctx, b.tax.ResolveSegments(segments), args)
}

func (b *Bus) dispatch(ctx context.Context, target *Node, args []any) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	evt := &Event{Path: target.Path(), Args: args}
	for n := target; !n.IsRoot(); n = n.parent {
		for _, e := range n.snapshot() {
			if e.removed.Load() {
				continue
			}
			b.invoke(ctx, n, e, evt)
			if evt.IsCanceled() {
				return true
			}
		}
	}
	return false
}

func (b *Bus) invoke(ctx context.Context, n *Node, e *entry, evt *Event) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		err = e.handler(ctx, evt)
	}()

	if err == nil {
		return
	}

	n.remove(e.id)
	b.dropOnceFor(e.id)
	b.logger().Errorf("event handler %s on %q failed while handling %q and was removed: %v",
		e.id, n.Path(), evt.Path, err)
}

// dropOnceFor clears the side-table entry pointing at a removed wrapper.
func (b *Bus) dropOnceFor(wid Handle) {
	b.onceMu.Lock()
	defer b.onceMu.Unlock()
	for id, w := range b.once {
		if w == wid {
			delete(b.once, id)
			return
		}
	}
}
