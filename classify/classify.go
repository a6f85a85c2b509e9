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

// Package classify turns a distance vector against a reference set
// into a conservative taxonomic prediction: no call over a reference
// database should ever report a wrong taxon in preference to reporting
// none at all.
package classify

import (
	"errors"

	"github.com/jlumpe/gambit/refdb"
	"github.com/jlumpe/gambit/taxonomy"
)

// Warning strings, stable across releases.
const (
	WarnNoThreshold         = "NoThreshold"
	WarnInconsistentMatches = "InconsistentMatches"
	WarnNoPrediction        = "NoPrediction"
)

// ErrEmptyDistanceVector is returned when Classify is called with no
// references to compare against.
var ErrEmptyDistanceVector = errors.New("classify: empty distance vector")

// Result is the outcome of classifying one query against a reference
// database.
type Result struct {
	// Predicted is the most specific reportable taxon meeting its
	// threshold, or taxonomy.NoNode.
	Predicted taxonomy.NodeID

	// Primary is the index of the reference genome driving Predicted,
	// or -1 if Predicted is taxonomy.NoNode.
	Primary int

	// Closest is the index of the argmin-distance reference. Always
	// valid when the distance vector is non-empty.
	Closest int

	// Next is the next most specific taxon that did not meet its
	// threshold, or taxonomy.NoNode.
	Next taxonomy.NodeID

	Warnings []string
}

// Classify runs the non-strict or strict prediction algorithm over a
// query's distances to every reference genome. distances[i] must be
// the Jaccard distance from the query to db.Genome(i)'s signature.
func Classify(distances []float32, db *refdb.DB, strict bool) (*Result, error) {
	if len(distances) == 0 {
		return nil, ErrEmptyDistanceVector
	}
	if len(distances) != db.NumRefs() {
		return nil, errors.New("classify: distance vector length does not match reference count")
	}

	closest, dmin := argmin(distances)
	forest := db.Taxonomy()

	res := &Result{Predicted: taxonomy.NoNode, Primary: -1, Closest: closest, Next: taxonomy.NoNode}

	closestTaxon := db.TaxonOf(closest)
	if closestTaxon != taxonomy.NoNode && forest.Node(closestTaxon).Threshold == nil {
		res.Warnings = append(res.Warnings, WarnNoThreshold)
	}

	if strict {
		classifyStrict(res, distances, db, forest)
	} else {
		classifyNonStrict(res, dmin, closestTaxon, forest)
	}

	if res.Predicted == taxonomy.NoNode && dminMetSomeThreshold(dmin, closestTaxon, forest) {
		res.Warnings = append(res.Warnings, WarnNoPrediction)
	}

	return res, nil
}

// dminMetSomeThreshold reports whether dmin would have satisfied some
// ancestor of closestTaxon's threshold. WarnNoPrediction is only
// meaningful when this holds: it flags a gap in the taxonomy
// annotation (a taxon dmin qualifies for that isn't reportable, or a
// strict-mode reconciliation that couldn't land on it), not a query
// that is genuinely too distant from every reference to match
// anything.
func dminMetSomeThreshold(dmin float32, closestTaxon taxonomy.NodeID, forest *taxonomy.Forest) bool {
	if closestTaxon == taxonomy.NoNode {
		return false
	}
	for _, n := range forest.Ancestors(closestTaxon) {
		t := forest.Node(n)
		if t.Threshold != nil && float64(dmin) <= *t.Threshold {
			return true
		}
	}
	return false
}

func argmin(distances []float32) (idx int, dmin float32) {
	idx = 0
	dmin = distances[0]
	for i := 1; i < len(distances); i++ {
		if distances[i] < dmin {
			dmin = distances[i]
			idx = i
		}
	}
	return idx, dmin
}

// classifyNonStrict climbs from the closest reference's taxon toward
// the root, stopping at the first
// (most specific) reportable ancestor whose threshold is satisfied.
// Because threshold is monotone non-decreasing toward the root, once
// one ancestor passes every ancestor above it also passes, so the
// first reportable pass found is the deepest one.
func classifyNonStrict(res *Result, dmin float32, closestTaxon taxonomy.NodeID, forest *taxonomy.Forest) {
	if closestTaxon == taxonomy.NoNode {
		return
	}

	for _, n := range forest.Ancestors(closestTaxon) {
		t := forest.Node(n)
		if t.Threshold == nil {
			continue
		}
		if float64(dmin) <= *t.Threshold {
			if t.Report {
				res.Predicted = n
				res.Primary = res.Closest
				return
			}
			continue
		}
		if res.Next == taxonomy.NoNode {
			res.Next = n
		}
	}
}

func classifyStrict(res *Result, distances []float32, db *refdb.DB, forest *taxonomy.Forest) {
	var candidates []taxonomy.NodeID
	for id := taxonomy.NodeID(0); int(id) < forest.Len(); id++ {
		t := forest.Node(id)
		if !t.Report || t.Threshold == nil {
			continue
		}
		if taxonPasses(id, *t.Threshold, distances, db, forest) {
			candidates = append(candidates, id)
		}
	}

	if len(candidates) == 0 {
		return
	}
	if len(candidates) == 1 {
		res.Predicted = candidates[0]
		res.Primary = primaryFor(candidates[0], distances, db, forest)
		return
	}

	if consistent, deepest := mutuallyConsistent(candidates, forest); consistent {
		res.Predicted = deepest
		res.Primary = primaryFor(deepest, distances, db, forest)
		return
	}

	res.Warnings = append(res.Warnings, WarnInconsistentMatches)
	lca := candidates[0]
	for _, c := range candidates[1:] {
		lca = forest.LCA(lca, c)
	}
	if lca == taxonomy.NoNode {
		return
	}
	lcaTaxon := forest.Node(lca)
	if !lcaTaxon.Report || lcaTaxon.Threshold == nil {
		return
	}
	if !taxonPasses(lca, *lcaTaxon.Threshold, distances, db, forest) {
		return
	}
	res.Predicted = lca
	res.Primary = primaryFor(lca, distances, db, forest)
}

// taxonPasses reports whether some reference assigned to id or one of
// its descendants lies within threshold of the query.
func taxonPasses(id taxonomy.NodeID, threshold float64, distances []float32, db *refdb.DB, forest *taxonomy.Forest) bool {
	members := descendantSet(id, forest)
	for i, d := range distances {
		if float64(d) > threshold {
			continue
		}
		if members[db.TaxonOf(i)] {
			return true
		}
	}
	return false
}

func descendantSet(id taxonomy.NodeID, forest *taxonomy.Forest) map[taxonomy.NodeID]bool {
	set := make(map[taxonomy.NodeID]bool)
	for _, d := range forest.Descendants(id) {
		set[d] = true
	}
	return set
}

// primaryFor picks the minimum-distance reference among those backing
// a passing taxon, to report as the "reference driving the prediction".
func primaryFor(id taxonomy.NodeID, distances []float32, db *refdb.DB, forest *taxonomy.Forest) int {
	members := descendantSet(id, forest)
	best := -1
	var bestDist float32
	for i, d := range distances {
		if !members[db.TaxonOf(i)] {
			continue
		}
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// mutuallyConsistent reports whether candidates form a single ancestor
// chain (every pair comparable), returning the deepest member if so.
func mutuallyConsistent(candidates []taxonomy.NodeID, forest *taxonomy.Forest) (ok bool, deepest taxonomy.NodeID) {
	deepest = candidates[0]
	deepestDepth := forest.Depth(deepest)
	for _, c := range candidates[1:] {
		if !forest.IsAncestor(c, deepest) && !forest.IsAncestor(deepest, c) {
			return false, taxonomy.NoNode
		}
		if d := forest.Depth(c); d > deepestDepth {
			deepest = c
			deepestDepth = d
		}
	}
	return true, deepest
}
