package proof

import (
	"sort"

	"github.com/verisql/verisql/sql"
)

// sortedColumnRefs collects the base columns a plan reads, in a deterministic
// order shared by prover and verifier. The order fixes the layout of the
// claimed base evaluations in the proof.
func sortedColumnRefs(p Plan) []sql.ColumnRef {
	set := make(map[sql.ColumnRef]struct{})
	p.CollectColumnRefs(set)
	refs := make([]sql.ColumnRef, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}

// sortedTableRefs collects the base tables a plan reads, deterministically.
func sortedTableRefs(p Plan) []sql.TableRef {
	set := make(map[sql.TableRef]struct{})
	p.CollectTableRefs(set)
	refs := make([]sql.TableRef, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}
