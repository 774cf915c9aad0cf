package simulator

import (
	"maps"
	"sync"

	"github.com/nerrad567/klf200-bridge/internal/event"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
)

// Node is the model of one device object, shared by every session.
type Node struct {
	id int

	mu    sync.RWMutex
	props map[string]any

	changed event.Source[gateway.PropertyChange]
}

func newNode(id int, props map[string]any) *Node {
	n := &Node{id: id, props: make(map[string]any, len(props))}
	maps.Copy(n.props, props)
	return n
}

// ID returns the object ID.
func (n *Node) ID() int { return n.id }

// Get returns a property value.
func (n *Node) Get(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.props[name]
	return v, ok
}

// Set changes a property and notifies every open session.
func (n *Node) Set(name string, value any) {
	n.mu.Lock()
	n.props[name] = value
	n.mu.Unlock()

	n.changed.Emit(gateway.PropertyChange{Property: name, Value: value})
}

func (n *Node) name() string {
	v, _ := n.Get(gateway.PropName)
	s, _ := v.(string)
	return s
}

func (n *Node) intProp(name string) int {
	v, _ := n.Get(name)
	i, _ := v.(int)
	return i
}
