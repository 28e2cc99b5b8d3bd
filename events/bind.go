package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/samber/lo"
)

// BindMode selects how Bind registers a handler group.
type BindMode int

const (
	// BindOn registers every handler like On.
	BindOn BindMode = iota
	// BindOnce registers every handler like Once; each fires at most one time.
	BindOnce
	// BindOnceAll lets only the first event of the group through. Every
	// handler of the group is unregistered before that one runs.
	BindOnceAll
)

func (m BindMode) String() string {
	switch m {
	case BindOn:
		return "on"
	case BindOnce:
		return "once"
	case BindOnceAll:
		return "onceAll"
	default:
		return fmt.Sprintf("BindMode(%d)", int(m))
	}
}

// Bind registers handlers keyed by event path and returns their handles
// under the same keys. Nothing is registered when an error is returned.
func (b *Bus) Bind(mode BindMode, handlers map[string]Handler) (map[string]Handle, error) {
	for path, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("event handler for %q must not be nil", path)
		}
	}

	handles := make(map[string]Handle, len(handlers))
	switch mode {
	case BindOn:
		for path, h := range handlers {
			handles[path], _ = b.On(path, h)
		}
	case BindOnce:
		for path, h := range handlers {
			handles[path], _ = b.Once(path, h)
		}
	case BindOnceAll:
		for path := range handlers {
			handles[path] = b.nextHandle()
		}
		group := lo.Assign(handles)
		var fired atomic.Bool
		for path, h := range handlers {
			b.attach(path, group[path], func(ctx context.Context, evt *Event) error {
				if !fired.CompareAndSwap(false, true) {
					return nil
				}
				b.Unbind(group)
				return h(ctx, evt)
			})
		}
	default:
		return nil, fmt.Errorf("unknown bind mode %s", mode)
	}
	return handles, nil
}

// Unbind removes every handle returned by Bind and reports how many
// registrations were still present.
func (b *Bus) Unbind(handles map[string]Handle) int {
	removed := 0
	for path, h := range handles {
		if b.Off(path, h) {
			removed++
		}
	}
	return removed
}
