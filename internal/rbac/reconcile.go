// AngelaMos | 2026
// reconcile.go

package rbac

import (
	"slices"
)

// Reconcile computes the additions and removals that turn current into
// desired. Duplicates collapse and both outputs are sorted ascending.
func Reconcile(current, desired []int64) (add, remove []int64) {
	have := make(map[int64]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}

	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}

	for id := range want {
		if _, ok := have[id]; !ok {
			add = append(add, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			remove = append(remove, id)
		}
	}

	slices.Sort(add)
	slices.Sort(remove)
	return add, remove
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
