// Package location representa el árbol de ubicaciones con intervalos anidados precalculados:
// "X es hija de Y" se responde comparando Left/Right sin recorrer el árbol.
package location

import (
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Interval rango [Left, Right] de un subárbol.
type Interval struct {
	Left  int
	Right int
}

// Contains indica si other está dentro del intervalo (inclusive).
func (i Interval) Contains(other Interval) bool {
	return i.Left <= other.Left && other.Right <= i.Right
}

type node struct {
	loc      *entity.Location
	parent   int
	children []int
}

// Tree arena de ubicaciones con índice por ID y orden por Left.
type Tree struct {
	nodes  []node
	index  map[string]int
	byLeft []int // índices de nodos ordenados por Left
}

// NewTree construye el árbol y calcula Left/Right de cada ubicación (las entidades se modifican).
// Falla si un padre no existe o si hay ciclos.
func NewTree(locs []*entity.Location) (*Tree, error) {
	t := &Tree{
		nodes: make([]node, 0, len(locs)),
		index: make(map[string]int, len(locs)),
	}
	for _, l := range locs {
		if l.ID == "" {
			return nil, fmt.Errorf("ubicación sin id: %w", domain.ErrInvalidInput)
		}
		if _, dup := t.index[l.ID]; dup {
			return nil, fmt.Errorf("ubicación %s duplicada: %w", l.ID, domain.ErrInvalidInput)
		}
		t.index[l.ID] = len(t.nodes)
		t.nodes = append(t.nodes, node{loc: l, parent: -1})
	}

	var roots []int
	for i := range t.nodes {
		pid := t.nodes[i].loc.ParentID
		if pid == "" {
			roots = append(roots, i)
			continue
		}
		p, ok := t.index[pid]
		if !ok {
			return nil, fmt.Errorf("ubicación %s: padre %s no existe: %w", t.nodes[i].loc.ID, pid, domain.ErrInvalidInput)
		}
		t.nodes[i].parent = p
		t.nodes[p].children = append(t.nodes[p].children, i)
	}

	for i := range t.nodes {
		t.sortChildren(t.nodes[i].children)
	}
	t.sortChildren(roots)

	counter := 0
	visited := 0
	var walk func(i int)
	walk = func(i int) {
		visited++
		counter++
		t.nodes[i].loc.Left = counter
		for _, c := range t.nodes[i].children {
			walk(c)
		}
		counter++
		t.nodes[i].loc.Right = counter
	}
	for _, r := range roots {
		walk(r)
	}
	// Nodos no alcanzados desde una raíz forman un ciclo.
	if visited != len(t.nodes) {
		return nil, fmt.Errorf("ciclo en el árbol de ubicaciones: %w", domain.ErrInvalidInput)
	}

	t.byLeft = make([]int, len(t.nodes))
	for i := range t.byLeft {
		t.byLeft[i] = i
	}
	sort.Slice(t.byLeft, func(a, b int) bool {
		return t.nodes[t.byLeft[a]].loc.Left < t.nodes[t.byLeft[b]].loc.Left
	})
	return t, nil
}

func (t *Tree) sortChildren(idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		la, lb := t.nodes[idx[a]].loc, t.nodes[idx[b]].loc
		if la.Sequence != lb.Sequence {
			return la.Sequence < lb.Sequence
		}
		if la.Name != lb.Name {
			return la.Name < lb.Name
		}
		return la.ID < lb.ID
	})
}

// Len número de ubicaciones.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get devuelve la ubicación por ID.
func (t *Tree) Get(id string) (*entity.Location, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[i].loc, true
}

// Interval devuelve el intervalo del subárbol de id.
func (t *Tree) Interval(id string) (Interval, bool) {
	l, ok := t.Get(id)
	if !ok {
		return Interval{}, false
	}
	return Interval{Left: l.Left, Right: l.Right}, true
}

// IsDescendant indica si id está en el subárbol de rootID (incluye rootID).
func (t *Tree) IsDescendant(id, rootID string) bool {
	a, ok := t.Interval(id)
	if !ok {
		return false
	}
	r, ok := t.Interval(rootID)
	if !ok {
		return false
	}
	return r.Contains(a)
}

// Descendants devuelve los IDs del subárbol (incluye rootID) en orden de árbol.
// Búsqueda binaria sobre Left: O(log n + k).
func (t *Tree) Descendants(rootID string) []string {
	r, ok := t.Interval(rootID)
	if !ok {
		return nil
	}
	start := sort.Search(len(t.byLeft), func(i int) bool {
		return t.nodes[t.byLeft[i]].loc.Left >= r.Left
	})
	var out []string
	for i := start; i < len(t.byLeft); i++ {
		l := t.nodes[t.byLeft[i]].loc
		if l.Left > r.Right {
			break
		}
		out = append(out, l.ID)
	}
	return out
}

// RemovalStrategy estrategia de la ubicación o del ancestro más cercano que la defina; vacío si ninguno.
func (t *Tree) RemovalStrategy(id string) entity.RemovalStrategy {
	i, ok := t.index[id]
	for ok && i >= 0 {
		if s := t.nodes[i].loc.RemovalStrategy; s != "" {
			return s
		}
		i = t.nodes[i].parent
	}
	return ""
}

// Locations devuelve todas las ubicaciones en orden de árbol.
func (t *Tree) Locations() []*entity.Location {
	out := make([]*entity.Location, 0, len(t.byLeft))
	for _, i := range t.byLeft {
		out = append(out, t.nodes[i].loc)
	}
	return out
}
