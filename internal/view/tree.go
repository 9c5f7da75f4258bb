package view

// Node is any element of the rendered tree, identified by a stable key.
type Node interface {
	Key() string
}

// Parent is a node exposing indexable ordered children. The reconciler never
// assumes a concrete implementation beyond these operations.
type Parent interface {
	Node
	Len() int
	At(i int) Node
	InsertAt(i int, child Node)
	RemoveAt(i int)
	Append(child Node)
}

// RenderMode tags a row with the structural layout it was built for. A row
// built for one mode cannot be patched into the other.
type RenderMode int

const (
	ModeStandard RenderMode = iota
	ModeCompact
)

// Tree is the root container.
type Tree struct {
	children []Node
}

func NewTree() *Tree { return &Tree{} }

func (t *Tree) Key() string { return "" }

func (t *Tree) Len() int { return len(t.children) }

func (t *Tree) At(i int) Node { return t.children[i] }

func (t *Tree) InsertAt(i int, child Node) { t.children = insertAt(t.children, i, child) }

func (t *Tree) RemoveAt(i int) { t.children = removeAt(t.children, i) }

func (t *Tree) Append(child Node) { t.children = append(t.children, child) }

// Group is an interior node with a collapse toggle. Collapse state survives
// in-place patching; rebuilds are expected to carry it over explicitly.
type Group struct {
	key       string
	Title     string
	SortKey   string
	Collapsed bool
	children  []Node
}

func NewGroup(key, title string) *Group {
	return &Group{key: key, Title: title}
}

func (g *Group) Key() string { return g.key }

func (g *Group) Len() int { return len(g.children) }

func (g *Group) At(i int) Node { return g.children[i] }

func (g *Group) InsertAt(i int, child Node) { g.children = insertAt(g.children, i, child) }

func (g *Group) RemoveAt(i int) { g.children = removeAt(g.children, i) }

func (g *Group) Append(child Node) { g.children = append(g.children, child) }

// Row is a leaf carrying the mutable display payload of one indicator line.
type Row struct {
	key  string
	Mode RenderMode

	Label       string
	Status      string
	ResetText   string
	FillPercent float64
	FillColor   string // severity color role: "green", "yellow", "red"
	Available   bool
	Indent      int
}

func NewRow(key string, mode RenderMode) *Row {
	return &Row{key: key, Mode: mode}
}

func (r *Row) Key() string { return r.key }

func (r *Row) SetLabel(s string) { r.Label = s }

func (r *Row) SetStatus(s string) { r.Status = s }

func (r *Row) SetReset(s string) { r.ResetText = s }

func (r *Row) SetFill(percent float64, color string) {
	r.FillPercent = percent
	r.FillColor = color
}

// IndexOf returns the position of the direct child with the given key, or -1.
func IndexOf(p Parent, key string) int {
	for i := 0; i < p.Len(); i++ {
		if p.At(i).Key() == key {
			return i
		}
	}
	return -1
}

// Remove detaches the first direct child with the given key.
func Remove(p Parent, key string) bool {
	if i := IndexOf(p, key); i >= 0 {
		p.RemoveAt(i)
		return true
	}
	return false
}

// Find walks the tree depth-first and returns the first node of type T with
// the given key.
func Find[T Node](root Parent, key string) (T, bool) {
	for i := 0; i < root.Len(); i++ {
		child := root.At(i)
		if child.Key() == key {
			if typed, ok := child.(T); ok {
				return typed, true
			}
		}
		if p, ok := child.(Parent); ok {
			if found, ok := Find[T](p, key); ok {
				return found, true
			}
		}
	}
	var zero T
	return zero, false
}

func insertAt(nodes []Node, i int, child Node) []Node {
	if i < 0 {
		i = 0
	}
	if i > len(nodes) {
		i = len(nodes)
	}
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = child
	return nodes
}

func removeAt(nodes []Node, i int) []Node {
	if i < 0 || i >= len(nodes) {
		return nodes
	}
	copy(nodes[i:], nodes[i+1:])
	return nodes[:len(nodes)-1]
}
