// Package lineage turns a task-lineage payload into a renderable graph.
//
// Build is pure: the same payload always produces the same node positions,
// and edges that reference unknown nodes are dropped instead of failing the
// whole graph.
package lineage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Layout spacing between layers (X) and between nodes within a layer (Y).
const (
	LayerSpacing = 200
	RankSpacing  = 100
)

// EdgeRef is a directed dependency between two task ids as sent by the gateway.
type EdgeRef struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Payload is the raw lineage response: node ids and directed edges.
type Payload struct {
	Nodes []NodeRef `json:"nodes"`
	Edges []EdgeRef `json:"edges"`
}

// NodeRef is a node id. It decodes from either a bare JSON string ("a")
// or an object carrying an id field ({"id": "a"}).
type NodeRef string

// UnmarshalJSON accepts both node encodings.
func (n *NodeRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = NodeRef(s)
		return nil
	}
	var obj struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("lineage: node must be a string or {\"id\": ...}: %w", err)
	}
	if obj.ID == nil {
		return fmt.Errorf("lineage: node object missing id: %s", data)
	}
	*n = NodeRef(*obj.ID)
	return nil
}

// NewPayload builds a Payload from plain node ids and edges.
func NewPayload(nodes []string, edges []EdgeRef) Payload {
	refs := make([]NodeRef, len(nodes))
	for i, n := range nodes {
		refs[i] = NodeRef(n)
	}
	return Payload{Nodes: refs, Edges: edges}
}

// Position is a 2-D node placement.
type Position struct {
	X int
	Y int
}

// Node is a renderable graph node.
type Node struct {
	ID       string
	Label    string
	Layer    int
	Position Position
}

// Edge is a renderable directed connection between two node ids.
type Edge struct {
	ID     string
	Source string
	Target string
}

// Graph is the render model produced by Build.
type Graph struct {
	Nodes   []Node
	Edges   []Edge
	Dropped int // Edges discarded for referencing unknown nodes.
}

// EdgeID returns the stable identifier for the edge from -> to.
func EdgeID(from, to string) string {
	return from + "->" + to
}

// Build converts a payload into a Graph. Duplicate nodes and edges are
// collapsed and dangling edges are dropped.
func Build(p Payload) Graph {
	var g Graph

	index := make(map[string]int, len(p.Nodes))
	for _, ref := range p.Nodes {
		id := string(ref)
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{ID: id, Label: id})
	}

	seen := make(map[string]bool, len(p.Edges))
	for _, e := range p.Edges {
		_, okFrom := index[e.From]
		_, okTo := index[e.To]
		if !okFrom || !okTo {
			g.Dropped++
			continue
		}
		id := EdgeID(e.From, e.To)
		if seen[id] {
			continue
		}
		seen[id] = true
		g.Edges = append(g.Edges, Edge{ID: id, Source: e.From, Target: e.To})
	}

	layers := assignLayers(g.Nodes, g.Edges, index)
	ranks := make(map[int]int)
	for i := range g.Nodes {
		layer := layers[i]
		g.Nodes[i].Layer = layer
		g.Nodes[i].Position = Position{X: layer * LayerSpacing, Y: ranks[layer] * RankSpacing}
		ranks[layer]++
	}

	return g
}

// assignLayers places every node at the length of the longest path reaching
// it from a source (Kahn's algorithm). Nodes stuck in cycles go one layer
// past the deepest placed node.
func assignLayers(nodes []Node, edges []Edge, index map[string]int) []int {
	layers := make([]int, len(nodes))
	indegree := make([]int, len(nodes))
	out := make([][]int, len(nodes))
	for _, e := range edges {
		from, to := index[e.Source], index[e.Target]
		out[from] = append(out[from], to)
		indegree[to]++
	}

	queue := make([]int, 0, len(nodes))
	for i := range nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	placed := make([]bool, len(nodes))
	deepest := -1
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		placed[n] = true
		if layers[n] > deepest {
			deepest = layers[n]
		}
		for _, next := range out[n] {
			if layers[n]+1 > layers[next] {
				layers[next] = layers[n] + 1
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	for i := range nodes {
		if !placed[i] {
			layers[i] = deepest + 1
		}
	}
	return layers
}

// Render returns a text rendering listing every node grouped by layer,
// followed by every edge.
func Render(g Graph) string {
	if len(g.Nodes) == 0 {
		return "No lineage"
	}

	var b strings.Builder
	maxLayer := 0
	for _, n := range g.Nodes {
		if n.Layer > maxLayer {
			maxLayer = n.Layer
		}
	}
	for layer := 0; layer <= maxLayer; layer++ {
		var labels []string
		for _, n := range g.Nodes {
			if n.Layer == layer {
				labels = append(labels, n.Label)
			}
		}
		if len(labels) == 0 {
			continue
		}
		fmt.Fprintf(&b, "L%d  %s\n", layer, strings.Join(labels, "  "))
	}

	if len(g.Edges) > 0 {
		b.WriteByte('\n')
		for i, e := range g.Edges {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s → %s", e.Source, e.Target)
		}
	}

	if g.Dropped > 0 {
		fmt.Fprintf(&b, "\n\n(%d dangling edge(s) dropped)", g.Dropped)
	}
	return strings.TrimRight(b.String(), "\n")
}
