// Package validate cross-checks parser output: structural constraints
// on the change list itself, sampled checks against the live snapshot
// trees, and a whole-tree round-trip comparison.
//
// Goals:
//   - Aggregate multiple issues into a single error for better UX
//   - Tolerate permission problems on real snapshots (count, don't fail)
//   - Deterministic reports suitable for golden-file tests
package validate

import (
	"errors"
	"fmt"
	"strings"

	"btrfs-diff/internal/change"
)

// Changes validates structural constraints every change list must
// satisfy, regardless of the stream that produced it:
//
//   - paths are non-empty and relative;
//   - renamed records have a destination different from the source;
//   - symlink-command records carry the link target;
//   - no two records share the same (path, action) pair;
//   - the list is in canonical (path, action) order.
//
// Returns nil when everything holds, or one aggregated error.
func Changes(changes []change.FileChange) error {
	var errs errlist

	type key struct {
		path   string
		action change.Action
	}
	seen := make(map[key]struct{}, len(changes))

	for i, fc := range changes {
		prefix := fmt.Sprintf("changes[%d] (%s)", i, fc.Path)

		if fc.Path == "" {
			errs.add("%s: path must be non-empty", prefix)
		} else if strings.HasPrefix(fc.Path, "/") {
			errs.add("%s: path must be snapshot-relative", prefix)
		}

		if fc.Action == change.ActionRenamed {
			if fc.Details.PathTo == "" {
				errs.add("%s: renamed record without path_to", prefix)
			} else if fc.Details.PathTo == fc.Path {
				errs.add("%s: renamed onto itself", prefix)
			}
		}
		if fc.Details.Command == "symlink" && fc.Action == change.ActionModified && fc.Details.PathLink == "" {
			errs.add("%s: symlink record without path_link", prefix)
		}

		k := key{fc.Path, fc.Action}
		if _, dup := seen[k]; dup {
			errs.add("%s: duplicate (path, action) pair", prefix)
		} else {
			seen[k] = struct{}{}
		}

		if i > 0 && change.Less(fc, changes[i-1]) {
			errs.add("%s: out of canonical (path, action) order", prefix)
		}
	}

	return errs.err()
}

// errlist aggregates validation failures into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return errors.New("validation failed:\n  - " + strings.Join(e.msgs, "\n  - "))
}
