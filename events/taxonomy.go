package events

import (
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type schemaNode struct {
	name     string
	children []schemaNode
}

func node(name string, children ...schemaNode) schemaNode {
	return schemaNode{name: name, children: children}
}

func channels(name string) schemaNode {
	return node(name, node("api"), node("event"))
}

// schema lists every event path the bus recognizes.
var schema = []schemaNode{
	node("message",
		node("private"),
		node("group"),
		node("discuss"),
	),
	node("message_sent",
		node("private"),
		node("group"),
	),
	node("notice",
		node("group_upload"),
		node("group_admin", node("set"), node("unset")),
		node("group_decrease", node("leave"), node("kick"), node("kick_me")),
		node("group_increase", node("approve"), node("invite")),
		node("group_ban", node("ban"), node("lift_ban")),
		node("friend_add"),
		node("group_recall"),
		node("friend_recall"),
		node("group_card"),
		node("offline_file"),
		node("client_status"),
		node("essence", node("add"), node("delete")),
		node("notify",
			node("poke", node("friend"), node("group")),
			node("lucky_king"),
			node("honor"),
		),
	),
	node("request",
		node("friend"),
		node("group", node("add"), node("invite")),
	),
	node("socket",
		channels("connecting"),
		channels("open"),
		channels("close"),
		channels("error"),
	),
	node("api",
		node("response"),
		node("preSend"),
	),
	node("meta_event",
		node("lifecycle", node("enable"), node("disable"), node("connect")),
		node("heartbeat"),
	),
}

// Node is one segment of a dotted event path. The tree shape is fixed after
// construction; only the handler list changes.
type Node struct {
	name     string
	parent   *Node
	children map[string]*Node
	order    []*Node

	mu      sync.RWMutex
	entries []*entry
}

func (n *Node) Name() string { return n.name }

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) IsRoot() bool { return n.parent == nil }

func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.order))
	copy(out, n.order)
	return out
}

func (n *Node) Child(name string) *Node { return n.children[name] }

// Path returns the dotted path from the root, empty for the root itself.
func (n *Node) Path() string {
	var names []string
	for cur := n; !cur.IsRoot(); cur = cur.parent {
		names = append(names, cur.name)
	}
	return strings.Join(lo.Reverse(names), ".")
}

func (n *Node) add(e *entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, e)
}

func (n *Node) remove(id Handle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.entries {
		if e.id != id {
			continue
		}
		e.removed.Store(true)
		n.entries = append(n.entries[:i:i], n.entries[i+1:]...)
		return true
	}
	return false
}

func (n *Node) snapshot() []*entry {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.entries) == 0 {
		return nil
	}
	out := make([]*entry, len(n.entries))
	copy(out, n.entries)
	return out
}

// Len reports how many handlers are registered directly on this node.
func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Taxonomy is the fixed tree of recognized event paths.
type Taxonomy struct {
	root *Node
	log  *zap.Logger
}

// NewTaxonomy builds the tree. A nil logger falls back to the global zap logger.
func NewTaxonomy(log *zap.Logger) *Taxonomy {
	root := &Node{children: map[string]*Node{}}
	for _, s := range schema {
		build(root, s)
	}
	return &Taxonomy{root: root, log: log}
}

func build(parent *Node, s schemaNode) {
	n := &Node{name: s.name, parent: parent, children: map[string]*Node{}}
	parent.children[s.name] = n
	parent.order = append(parent.order, n)
	for _, c := range s.children {
		build(n, c)
	}
}

func (t *Taxonomy) Root() *Node { return t.root }

func (t *Taxonomy) logger() *zap.SugaredLogger {
	if t.log != nil {
		return t.log.Sugar()
	}
	return zap.L().Named("events").Sugar()
}

// Resolve walks a dotted path from the root. On the first unknown segment it
// logs a warning and returns the deepest node matched so far.
func (t *Taxonomy) Resolve(path string) *Node {
	if path == "" {
		return t.root
	}
	return t.ResolveSegments(strings.Split(path, "."))
}

func (t *Taxonomy) ResolveSegments(segments []string) *Node {
	cur := t.root
	for _, seg := range segments {
		next, ok := cur.children[seg]
		if !ok {
			t.logger().Warnf("event path %q is not supported, falling back to %q",
				strings.Join(segments, "."), lo.Ternary(cur.IsRoot(), "<root>", cur.Path()))
			return cur
		}
		cur = next
	}
	return cur
}

// Paths lists every recognized path in schema order.
func (t *Taxonomy) Paths() []string {
	var out []string
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.order {
			out = append(out, c.Path())
			walk(c)
		}
	}
	walk(t.root)
	return out
}
