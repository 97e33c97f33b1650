package magic

import (
	"sort"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

// HeadVertex is the SIP vertex of the rule head. Body literals are vertices
// 0..n-1 by position.
const HeadVertex = -1

// Edge passes Variables from the literal at From to the literal at To.
type Edge struct {
	From      int
	To        int
	Variables []ir.Variable // sorted
}

// SIP is the sideways information passing graph of one rule under one head
// adornment. It is immutable; build it with BuildSIP.
type SIP struct {
	size  int
	edges []Edge
	into  map[int][]int // vertex -> indexes into edges
	from  map[int][]int
	bound [][]ir.Variable // bound[i]: variables bound before literal i
	deps  [][]int
}

// sipBuilder accumulates edges; parallel edges merge by union.
type sipBuilder struct {
	size      int
	weights   map[[2]int]map[ir.Variable]bool
	producers map[ir.Variable][]int
	bound     [][]ir.Variable
}

func newSIPBuilder(size int) *sipBuilder {
	return &sipBuilder{
		size:      size,
		weights:   make(map[[2]int]map[ir.Variable]bool),
		producers: make(map[ir.Variable][]int),
		bound:     make([][]ir.Variable, 0, size),
	}
}

func (b *sipBuilder) produce(v ir.Variable, vertex int) {
	for _, p := range b.producers[v] {
		if p == vertex {
			return
		}
	}
	b.producers[v] = append(b.producers[v], vertex)
}

func (b *sipBuilder) addEdge(from, to int, v ir.Variable) {
	key := [2]int{from, to}
	w, ok := b.weights[key]
	if !ok {
		w = make(map[ir.Variable]bool)
		b.weights[key] = w
	}
	w[v] = true
}

// snapshot records the variables bound so far.
func (b *sipBuilder) snapshot() {
	vars := make([]ir.Variable, 0, len(b.producers))
	for v := range b.producers {
		vars = append(vars, v)
	}
	sortVariables(vars)
	b.bound = append(b.bound, vars)
}

func (b *sipBuilder) build() *SIP {
	s := &SIP{
		size:  b.size,
		into:  make(map[int][]int),
		from:  make(map[int][]int),
		bound: b.bound,
	}
	keys := make([][2]int, 0, len(b.weights))
	for k := range b.weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		vars := make([]ir.Variable, 0, len(b.weights[k]))
		for v := range b.weights[k] {
			vars = append(vars, v)
		}
		sortVariables(vars)
		s.into[k[1]] = append(s.into[k[1]], len(s.edges))
		s.from[k[0]] = append(s.from[k[0]], len(s.edges))
		s.edges = append(s.edges, Edge{From: k[0], To: k[1], Variables: vars})
	}
	s.deps = make([][]int, b.size)
	for i := 0; i < b.size; i++ {
		s.deps[i] = s.reachBackward(i)
	}
	return s
}

// BuildSIP scans the body left to right. Variables in bound positions of the
// head start bound with the head as producer. A literal receives an edge from
// every producer of each of its variables; a positive ordinary literal, or a
// positive built-in with no more unbound variables than it can solve for,
// then produces all of its variables.
func BuildSIP(r ir.Rule, adornment Adornment, reg *builtin.Registry) *SIP {
	b := newSIPBuilder(len(r.Body))
	head := r.HeadAtom()
	for i, t := range head.Tuple {
		if !adornment.IsBound(i) {
			continue
		}
		for _, v := range ir.TermVariables(nil, nil, t) {
			b.produce(v, HeadVertex)
		}
	}

	for i, l := range r.Body {
		b.snapshot()
		vars := l.Atom.Variables()
		open := 0
		for _, v := range vars {
			producers := b.producers[v]
			if len(producers) == 0 {
				open++
			}
			for _, p := range producers {
				b.addEdge(p, i, v)
			}
		}
		if !l.Positive {
			continue
		}
		if bi, ok := reg.Lookup(l.Predicate()); ok && open > bi.MaxUnknownVariables() {
			continue
		}
		for _, v := range vars {
			b.produce(v, i)
		}
	}
	return b.build()
}

// Len returns the number of body literals.
func (s *SIP) Len() int { return s.size }

// Edges returns every edge ordered by (From, To).
func (s *SIP) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// EdgesInto returns the edges ending at vertex i.
func (s *SIP) EdgesInto(i int) []Edge { return s.pick(s.into[i]) }

// EdgesFrom returns the edges starting at vertex i.
func (s *SIP) EdgesFrom(i int) []Edge { return s.pick(s.from[i]) }

func (s *SIP) pick(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for j, k := range idx {
		out[j] = s.edges[k]
	}
	return out
}

// BoundBefore returns every variable bound before body literal i is
// evaluated, sorted. The set only grows with i.
func (s *SIP) BoundBefore(i int) []ir.Variable {
	if i < 0 || i >= len(s.bound) {
		return nil
	}
	return append([]ir.Variable(nil), s.bound[i]...)
}

// BoundVariables returns the variables literal i receives along its edges.
func (s *SIP) BoundVariables(i int) []ir.Variable {
	seen := make(map[ir.Variable]bool)
	var out []ir.Variable
	for _, e := range s.EdgesInto(i) {
		for _, v := range e.Variables {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sortVariables(out)
	return out
}

// Depends returns the body literals whose bindings reach literal i, directly
// or transitively, in rule order. The head is not included.
func (s *SIP) Depends(i int) []int {
	if i < 0 || i >= len(s.deps) {
		return nil
	}
	return append([]int(nil), s.deps[i]...)
}

func (s *SIP) reachBackward(i int) []int {
	seen := make(map[int]bool)
	stack := []int{i}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, k := range s.into[v] {
			src := s.edges[k].From
			if src == HeadVertex || seen[src] {
				continue
			}
			seen[src] = true
			stack = append(stack, src)
		}
	}
	delete(seen, i)
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Compare orders literals i and j: -1 when i is a dependency of j and not
// the other way round, 1 for the reverse, 0 otherwise.
func (s *SIP) Compare(i, j int) int {
	iBeforeJ := containsInt(s.Depends(j), i)
	jBeforeI := containsInt(s.Depends(i), j)
	switch {
	case iBeforeJ && !jBeforeI:
		return -1
	case jBeforeI && !iBeforeJ:
		return 1
	default:
		return 0
	}
}

func containsInt(xs []int, x int) bool {
	i := sort.SearchInts(xs, x)
	return i < len(xs) && xs[i] == x
}

func sortVariables(vs []ir.Variable) {
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
}
