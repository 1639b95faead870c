package render

import (
	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// SelectEvent is forwarded to OnSelect when a pointer goes down on a node.
type SelectEvent struct {
	ID    string
	Shift bool
	Point geometry.Point
}

// Props are the inputs of a mounted shape.
type Props struct {
	Shape    shapes.Shape
	Selected bool
	Label    string

	OnSelect    func(SelectEvent)
	OnTransform func(id string, c geometry.Coordinates) error
	OnRotate    func(id string, deg float64) error

	Registry *NodeRegistry
}

// Component binds one shape to its adapter and its registered node.
type Component struct {
	props   Props
	adapter Adapter
	style   shapes.Style
	node    *Node
}

// Mount draws the shape and registers its node. Unknown kinds fail with
// UNKNOWN_KIND and nothing is registered.
func Mount(p Props) (*Component, error) {
	if p.Registry == nil {
		return nil, errors.New(errors.CodeInternal, "mount %s: no node registry", p.Shape.ID)
	}
	adapter, style, err := AdapterFor(p.Shape.Type)
	if err != nil {
		return nil, err
	}
	prim, err := draw(adapter, style, p)
	if err != nil {
		return nil, err
	}

	c := &Component{props: p, adapter: adapter, style: style, node: newNode(prim)}
	p.Registry.Register(p.Shape.ID, c.node)
	return c, nil
}

func draw(a Adapter, style shapes.Style, p Props) (Primitive, error) {
	prim, err := a.Draw(p.Shape, p.Selected, style)
	if err != nil {
		return Primitive{}, err
	}
	prim.Label = p.Label
	return prim, nil
}

// Update applies new props. It reports false when the shape is
// render-equivalent and its selected flag is unchanged, in which case the
// node is left alone.
func (c *Component) Update(p Props) (bool, error) {
	if shapes.Equivalent(c.props.Shape, p.Shape) && c.props.Selected == p.Selected && c.props.Label == p.Label {
		c.props = p
		return false, nil
	}
	if p.Shape.Type != c.props.Shape.Type {
		return false, errors.Validation("shape %s changed kind from %s to %s", p.Shape.ID, c.props.Shape.Type, p.Shape.Type)
	}

	prim, err := draw(c.adapter, c.style, p)
	if err != nil {
		return false, err
	}

	if p.Shape.ID != c.props.Shape.ID {
		c.props.Registry.Unregister(c.props.Shape.ID, c.node)
		c.node = newNode(prim)
		p.Registry.Register(p.Shape.ID, c.node)
	} else {
		c.node.Primitive = prim
	}
	c.props = p
	return true, nil
}

// Unmount deregisters the node.
func (c *Component) Unmount() {
	c.props.Registry.Unregister(c.props.Shape.ID, c.node)
}

func (c *Component) Node() *Node          { return c.node }
func (c *Component) Shape() shapes.Shape  { return c.props.Shape }
func (c *Component) Selected() bool       { return c.props.Selected }
func (c *Component) Primitive() Primitive { return c.node.Live() }

// PointerDown forwards a press on this node to OnSelect.
func (c *Component) PointerDown(p geometry.Point, shift bool) {
	if c.props.OnSelect != nil {
		c.props.OnSelect(SelectEvent{ID: c.props.Shape.ID, Shift: shift, Point: p})
	}
}

// Hit reports whether p lands on the node, including any in-flight offset.
func (c *Component) Hit(p geometry.Point, tol float64) bool {
	coords := c.props.Shape.Coordinates
	if c.node.OffsetX != 0 || c.node.OffsetY != 0 {
		coords = geometry.Translate(coords, c.node.OffsetX, c.node.OffsetY)
	}
	if path, ok := coords.(geometry.PathCoords); ok {
		if c.style.Closed {
			return geometry.ContainsPolygon(path.Points, p, tol)
		}
		w := c.node.Primitive.StrokeWidth
		if w < tol {
			w = tol
		}
		return geometry.Contains(path, 0, p, w)
	}
	return geometry.Contains(coords, c.props.Shape.RotationDeg(), p, tol)
}

// Commit reports committed geometry through OnTransform and resets the
// node's local transform. The node is reset even if the write fails, so it
// falls back to the stored shape.
func (c *Component) Commit(coords geometry.Coordinates) error {
	defer c.node.Reset()
	if c.props.OnTransform == nil {
		return nil
	}
	return c.props.OnTransform(c.props.Shape.ID, coords)
}

// CommitRotation reports a committed rotation through OnRotate and resets
// the node.
func (c *Component) CommitRotation(deg float64) error {
	defer c.node.Reset()
	if c.props.OnRotate == nil {
		return nil
	}
	return c.props.OnRotate(c.props.Shape.ID, deg)
}
