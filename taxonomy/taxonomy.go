// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package taxonomy represents a rooted forest of taxa as an arena of
// nodes addressed by 32-bit index: no shared-ownership pointers, no
// cycles possible by construction, O(1) parent walks.
package taxonomy

import "errors"

// NodeID addresses a Taxon within a Forest's arena. Ids are assigned
// from 0 in insertion order, so the first node added has id 0; use
// NoNode to represent "no node" (e.g. root's parent, or an LCA that
// doesn't exist).
type NodeID int32

// NoNode is the sentinel NodeID meaning "absent".
const NoNode NodeID = -1

// Taxon is one node of the rooted forest.
type Taxon struct {
	Name   string
	Rank   string
	NCBIID *int64 // optional external id

	Parent   NodeID
	Children []NodeID

	Threshold *float64 // nil means "unset"
	Report    bool
}

// ErrCycle reports a loop in parent links found while loading a
// taxonomy into a Forest (refdb returns it for a taxon table whose
// parent_id links form a cycle). AddRoot and AddChild never return it.
var ErrCycle = errors.New("taxonomy: parent assignment would create a cycle")

// Forest is an arena of Taxon nodes. The zero value is an empty forest.
type Forest struct {
	nodes []Taxon
}

// NewForest returns an empty Forest.
func NewForest() *Forest {
	return &Forest{}
}

// AddRoot appends a new root-level taxon (no parent) and returns its id.
func (f *Forest) AddRoot(t Taxon) NodeID {
	t.Parent = NoNode
	t.Children = nil
	f.nodes = append(f.nodes, t)
	return NodeID(len(f.nodes) - 1)
}

// AddChild appends a new taxon as a child of parent and returns its id.
// It panics if parent is out of range; building a forest is expected to
// happen once, at load time, from trusted data.
func (f *Forest) AddChild(parent NodeID, t Taxon) NodeID {
	t.Parent = parent
	t.Children = nil
	f.nodes = append(f.nodes, t)
	id := NodeID(len(f.nodes) - 1)
	f.nodes[parent].Children = append(f.nodes[parent].Children, id)
	return id
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int { return len(f.nodes) }

// Node returns the Taxon at id. It panics on an out-of-range id (an
// internal-consistency bug, not a recoverable runtime condition, since
// ids are only ever produced by this package).
func (f *Forest) Node(id NodeID) *Taxon {
	return &f.nodes[id]
}

// Parent returns the parent of id, or NoNode if id is a root.
func (f *Forest) Parent(id NodeID) NodeID {
	return f.nodes[id].Parent
}

// IsAncestor reports whether anc is a strict or non-strict ancestor of
// desc (anc == desc counts as an ancestor).
func (f *Forest) IsAncestor(anc, desc NodeID) bool {
	for n := desc; n != NoNode; n = f.nodes[n].Parent {
		if n == anc {
			return true
		}
	}
	return false
}

// Ancestors returns id and every ancestor of id, closest first, ending
// at its root.
func (f *Forest) Ancestors(id NodeID) []NodeID {
	out := []NodeID{id}
	for n := f.nodes[id].Parent; n != NoNode; n = f.nodes[n].Parent {
		out = append(out, n)
	}
	return out
}

// Depth returns the number of edges between id and its root (0 for a root).
func (f *Forest) Depth(id NodeID) int {
	d := 0
	for n := f.nodes[id].Parent; n != NoNode; n = f.nodes[n].Parent {
		d++
	}
	return d
}

// LCA returns the lowest common ancestor of a and b, or NoNode if they
// belong to different trees in the forest. Grounded on
// shenwei356-unikmer/taxonomy.go's Taxonomy.LCA: walk a's ancestor line
// into a set, then walk b's ancestor line until it hits that set.
func (f *Forest) LCA(a, b NodeID) NodeID {
	if a == NoNode {
		return b
	}
	if b == NoNode {
		return a
	}
	if a == b {
		return a
	}

	seen := make(map[NodeID]struct{}, f.Depth(a)+1)
	for n := a; n != NoNode; n = f.nodes[n].Parent {
		seen[n] = struct{}{}
	}
	for n := b; n != NoNode; n = f.nodes[n].Parent {
		if _, ok := seen[n]; ok {
			return n
		}
	}
	return NoNode
}

// Descendants returns id and every node in its subtree, in no
// particular order.
func (f *Forest) Descendants(id NodeID) []NodeID {
	out := []NodeID{id}
	var walk func(NodeID)
	walk = func(n NodeID) {
		for _, c := range f.nodes[n].Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}
