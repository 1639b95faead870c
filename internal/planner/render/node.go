package render

import (
	"sort"
	"sync"

	"space-planner/internal/planner/geometry"
)

// ============================================================
// Node
// ============================================================

// Node is the live drawable for one shape. Offset, scale and rotation delta
// hold an in-flight drag or transform that has not been committed yet.
type Node struct {
	ID        string
	Primitive Primitive

	OffsetX, OffsetY float64
	ScaleX, ScaleY   float64
	RotationDelta    float64
}

func newNode(p Primitive) *Node {
	n := &Node{ID: p.ShapeID, Primitive: p}
	n.Reset()
	return n
}

// Reset drops any uncommitted local transform.
func (n *Node) Reset() {
	n.OffsetX, n.OffsetY = 0, 0
	n.ScaleX, n.ScaleY = 1, 1
	n.RotationDelta = 0
}

// Offset returns the in-flight drag offset.
func (n *Node) Offset() geometry.Point {
	return geometry.Point{X: n.OffsetX, Y: n.OffsetY}
}

// Dirty reports whether the node carries an uncommitted transform.
func (n *Node) Dirty() bool {
	return n.OffsetX != 0 || n.OffsetY != 0 || n.ScaleX != 1 || n.ScaleY != 1 || n.RotationDelta != 0
}

// Live returns the primitive with the in-flight transform applied.
func (n *Node) Live() Primitive {
	p := n.Primitive.clone()
	p.X += n.OffsetX
	p.Y += n.OffsetY
	p.ScaleX = n.ScaleX
	p.ScaleY = n.ScaleY
	p.Rotation = geometry.NormalizeDegrees(p.Rotation + n.RotationDelta)
	return p
}

// ============================================================
// NodeRegistry
// ============================================================

// NodeRegistry is the shared id -> node map the adapters register into.
// Register and Unregister must be called symmetrically.
type NodeRegistry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{nodes: make(map[string]*Node)}
}

// Register binds n to id, replacing any previous node.
func (r *NodeRegistry) Register(id string, n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[id] = n
}

// Unregister removes id only if it is still bound to n, so a late
// unregister from a replaced node cannot drop its successor.
func (r *NodeRegistry) Unregister(id string, n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.nodes[id]; ok && cur == n {
		delete(r.nodes, id)
	}
}

func (r *NodeRegistry) Get(id string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

func (r *NodeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// IDs returns the registered ids sorted.
func (r *NodeRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
