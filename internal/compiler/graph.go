package compiler

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

// predicateGraph is a directed graph over predicates. Node IDs are assigned
// in first-appearance order so that stabilized sorts follow source order.
type predicateGraph struct {
	g     *simple.DirectedGraph
	ids   map[ir.Predicate]int64
	preds []ir.Predicate
	loops map[ir.Predicate]bool
}

func newPredicateGraph() *predicateGraph {
	return &predicateGraph{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[ir.Predicate]int64),
		loops: make(map[ir.Predicate]bool),
	}
}

func (pg *predicateGraph) node(p ir.Predicate) graph.Node {
	id, ok := pg.ids[p]
	if !ok {
		id = int64(len(pg.preds))
		pg.ids[p] = id
		pg.preds = append(pg.preds, p)
		pg.g.AddNode(simple.Node(id))
	}
	return simple.Node(id)
}

// connect adds from -> to. Self loops are recorded on the side because the
// simple graph rejects them.
func (pg *predicateGraph) connect(from, to ir.Predicate) {
	a, b := pg.node(from), pg.node(to)
	if from == to {
		pg.loops[from] = true
		return
	}
	pg.g.SetEdge(pg.g.NewEdge(a, b))
}

func (pg *predicateGraph) predicate(n graph.Node) ir.Predicate {
	return pg.preds[n.ID()]
}

// dependencyGraph links each rule head to the ordinary predicates of its body.
func dependencyGraph(rules []ir.Rule, reg *builtin.Registry) *predicateGraph {
	pg := newPredicateGraph()
	for _, r := range rules {
		pg.node(r.HeadPredicate())
		for _, l := range r.Body {
			if reg.IsBuiltin(l.Predicate()) {
				continue
			}
			pg.connect(r.HeadPredicate(), l.Predicate())
		}
	}
	return pg
}

// negativeCycle finds a negated dependency inside a strongly connected
// component and returns the closed path head, negated body, ..., head.
// It returns nil when the predicate graph has no such cycle.
func negativeCycle(rules []ir.Rule, reg *builtin.Registry) []ir.Predicate {
	pg := dependencyGraph(rules, reg)
	component := make(map[int64]int)
	for i, scc := range topo.TarjanSCC(pg.g) {
		for _, n := range scc {
			component[n.ID()] = i
		}
	}

	for _, r := range rules {
		head := r.HeadPredicate()
		for _, l := range r.Body {
			if l.Positive || reg.IsBuiltin(l.Predicate()) {
				continue
			}
			body := l.Predicate()
			if body == head {
				return []ir.Predicate{head, head}
			}
			hid, bid := pg.ids[head], pg.ids[body]
			if component[hid] != component[bid] {
				continue
			}
			nodes, _ := path.DijkstraFromTo(simple.Node(bid), simple.Node(hid), pg.g)
			if len(nodes) == 0 {
				continue
			}
			cycle := []ir.Predicate{head}
			for _, n := range nodes {
				cycle = append(cycle, pg.predicate(n))
			}
			return cycle
		}
	}
	return nil
}

// reorderStratum orders rules so that a rule producing a predicate another
// rule of the stratum reads comes first. Mutually recursive predicates keep
// the order in which they first appear.
func reorderStratum(rules []ir.Rule) []ir.Rule {
	if len(rules) < 2 {
		return rules
	}
	pg := newPredicateGraph()
	heads := make(map[ir.Predicate]bool)
	for _, r := range rules {
		pg.node(r.HeadPredicate())
		heads[r.HeadPredicate()] = true
	}
	for _, r := range rules {
		for _, l := range r.Body {
			if heads[l.Predicate()] {
				pg.connect(l.Predicate(), r.HeadPredicate())
			}
		}
	}

	sorted, err := topo.SortStabilized(pg.g, nil)
	var cyclic topo.Unorderable
	if err != nil {
		cyclic, _ = err.(topo.Unorderable)
	}
	position := make(map[ir.Predicate]int, len(pg.preds))
	next := 0
	for _, n := range sorted {
		if n != nil {
			position[pg.predicate(n)] = next
			next++
			continue
		}
		if len(cyclic) == 0 {
			continue
		}
		for _, member := range cyclic[0] {
			position[pg.predicate(member)] = next
			next++
		}
		cyclic = cyclic[1:]
	}

	out := make([]ir.Rule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return position[out[i].HeadPredicate()] < position[out[j].HeadPredicate()]
	})
	return out
}
