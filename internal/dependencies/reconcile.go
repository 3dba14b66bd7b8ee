package dependencies

import (
	"github.com/tidwall/btree"
)

// Plan is the delta between a manifest's declared and stored edges.
type Plan struct {
	// Add holds declared edges missing from the store.
	Add []Edge

	// Remove holds stored edges no longer declared. RowID is set.
	Remove []Edge
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Diff computes Add = declared − stored and Remove = stored − declared.
//
// Edges are keyed by (PackageRow, MinVersion). An absent minimum version
// equals only another absent one, so (P, none) and (P, "") never match.
// A changed minimum version shows up as one removal and one addition for
// the same package. Both slices are ordered by key and never nil.
func Diff(declared, stored []Edge) Plan {
	want := newEdgeSet(declared)
	have := newEdgeSet(stored)

	plan := Plan{Add: []Edge{}, Remove: []Edge{}}
	want.Scan(func(e Edge) bool {
		if _, ok := have.Get(e); !ok {
			plan.Add = append(plan.Add, e)
		}
		return true
	})
	have.Scan(func(e Edge) bool {
		if _, ok := want.Get(e); !ok {
			plan.Remove = append(plan.Remove, e)
		}
		return true
	})
	return plan
}

func newEdgeSet(edges []Edge) *btree.BTreeG[Edge] {
	set := btree.NewBTreeG[Edge](edgeLess)
	for _, e := range edges {
		set.Set(e)
	}
	return set
}

// edgeLess orders edges by package row, then absent-before-present minimum
// version, then version string. RowID is not part of the key.
func edgeLess(a, b Edge) bool {
	if a.PackageRow != b.PackageRow {
		return a.PackageRow < b.PackageRow
	}
	if a.MinVersion.Valid != b.MinVersion.Valid {
		return !a.MinVersion.Valid
	}
	return a.MinVersion.String < b.MinVersion.String
}
