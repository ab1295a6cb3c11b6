package graph

import (
	"sort"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

// Edge is the ingestion-time view of a link. Analyzer only ever walks
// dependency edges.
type Edge struct {
	Parent string
	Child  string
	Kind   quest.EdgeKind
}

func EdgesFromLinks(links []*quest.BlueprintLink) []Edge {
	out := make([]Edge, 0, len(links))
	for _, l := range links {
		if l == nil {
			continue
		}
		out = append(out, Edge{Parent: l.ParentNodeID, Child: l.ChildNodeID, Kind: l.Kind()})
	}
	return out
}

// Analyzer answers read-side questions about one blueprint's dependency graph.
// Descendant sets are memoized for the lifetime of the Analyzer, so build a
// new one per analysis pass. Not safe for concurrent use.
type Analyzer struct {
	nodes     []*quest.BlueprintNode
	byID      map[string]*quest.BlueprintNode
	children  map[string][]string
	hasParent map[string]bool
	memo      map[string][]string
}

func NewAnalyzer(nodes []*quest.BlueprintNode, edges []Edge) *Analyzer {
	a := &Analyzer{
		byID:      make(map[string]*quest.BlueprintNode, len(nodes)),
		children:  map[string][]string{},
		hasParent: map[string]bool{},
		memo:      map[string][]string{},
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := a.byID[n.ID]; dup {
			continue
		}
		a.byID[n.ID] = n
		a.nodes = append(a.nodes, n)
	}
	sort.SliceStable(a.nodes, func(i, j int) bool {
		if a.nodes[i].SortOrder != a.nodes[j].SortOrder {
			return a.nodes[i].SortOrder < a.nodes[j].SortOrder
		}
		return a.nodes[i].ID < a.nodes[j].ID
	})

	seen := map[[2]string]bool{}
	for _, e := range edges {
		if e.Kind == quest.EdgeSequencing {
			continue
		}
		if _, ok := a.byID[e.Parent]; !ok {
			continue
		}
		if _, ok := a.byID[e.Child]; !ok {
			continue
		}
		key := [2]string{e.Parent, e.Child}
		if seen[key] {
			continue
		}
		seen[key] = true
		a.children[e.Parent] = append(a.children[e.Parent], e.Child)
		if e.Parent != e.Child {
			a.hasParent[e.Child] = true
		}
	}
	return a
}

// NewAnalyzerFromLinks is NewAnalyzer over EdgesFromLinks(links).
func NewAnalyzerFromLinks(nodes []*quest.BlueprintNode, links []*quest.BlueprintLink) *Analyzer {
	return NewAnalyzer(nodes, EdgesFromLinks(links))
}

// Nodes returns nodes ordered by sort order, then id.
func (a *Analyzer) Nodes() []*quest.BlueprintNode { return a.nodes }

func (a *Analyzer) Node(id string) (*quest.BlueprintNode, bool) {
	n, ok := a.byID[id]
	return n, ok
}

func (a *Analyzer) Children(id string) []string {
	return append([]string(nil), a.children[id]...)
}

// Roots returns nodes with no incoming dependency edge, or every node when
// the graph has none.
func (a *Analyzer) Roots() []*quest.BlueprintNode {
	var roots []*quest.BlueprintNode
	for _, n := range a.nodes {
		if !a.hasParent[n.ID] {
			roots = append(roots, n)
		}
	}
	if len(roots) == 0 {
		return a.nodes
	}
	return roots
}

// CollectDescendants returns every node reachable from id over dependency
// edges in BFS discovery order. id itself is never included, even on a cycle.
func (a *Analyzer) CollectDescendants(id string) []string {
	if cached, ok := a.memo[id]; ok {
		return append([]string(nil), cached...)
	}
	visited := map[string]bool{id: true}
	var out []string
	var queue []string
	for _, c := range a.children[id] {
		if !visited[c] {
			visited[c] = true
			queue = append(queue, c)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, next := range a.children[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	a.memo[id] = out
	return append([]string(nil), out...)
}

// GroupOrder returns group nodes ordered so that a group reachable from
// another group is listed first. Fewer descendants sorts earlier.
func (a *Analyzer) GroupOrder() []*quest.BlueprintNode {
	var groups []*quest.BlueprintNode
	for _, n := range a.nodes {
		if n.IsGroup() {
			groups = append(groups, n)
		}
	}
	size := make(map[string]int, len(groups))
	for _, g := range groups {
		size[g.ID] = len(a.CollectDescendants(g.ID))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return size[groups[i].ID] < size[groups[j].ID]
	})
	return groups
}

// StepCount is the BFS depth (roots at depth 1) of the first final node
// reached from the roots. Without a reachable final node it is the node count.
func (a *Analyzer) StepCount() int {
	if len(a.nodes) == 0 {
		return 0
	}
	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{}
	var queue []item
	for _, r := range a.Roots() {
		visited[r.ID] = true
		queue = append(queue, item{id: r.ID, depth: 1})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if a.byID[cur.id].IsFinal() {
			return cur.depth
		}
		for _, next := range a.children[cur.id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, item{id: next, depth: cur.depth + 1})
		}
	}
	return len(a.nodes)
}
