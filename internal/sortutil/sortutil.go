// Package sortutil provides the canonical ordering of diff output.
package sortutil

import (
	"sort"

	"btrfs-diff/internal/change"
)

// Changes sorts a change list in place into the canonical output
// order: by path, then deleted < renamed < modified. The sort is
// stable so records the comparison cannot distinguish keep their
// aggregation order.
func Changes(changes []change.FileChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return change.Less(changes[i], changes[j])
	})
}
