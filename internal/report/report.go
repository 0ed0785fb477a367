// Package report renders change lists and validation results for the
// CLI: stable JSON for machine consumers, summary and table formats
// for humans.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/textutil"
)

// tableLimit caps table output; full detail belongs to the JSON
// format.
const tableLimit = 50

// WriteJSON writes the change list as two-space-indented JSON, the
// stable machine-readable shape.
func WriteJSON(w io.Writer, changes []change.FileChange) error {
	data, err := change.MarshalIndent(changes)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteSummary writes per-action and per-command counts.
func WriteSummary(w io.Writer, changes []change.FileChange) error {
	byAction := make(map[change.Action]int)
	byCommand := make(map[string]int)
	for _, fc := range changes {
		byAction[fc.Action]++
		byCommand[fc.Details.Command]++
	}

	fmt.Fprintf(w, "Summary of %d changes:\n", len(changes))
	fmt.Fprintf(w, "  Modified: %d\n", byAction[change.ActionModified])
	fmt.Fprintf(w, "  Deleted:  %d\n", byAction[change.ActionDeleted])
	fmt.Fprintf(w, "  Renamed:  %d\n", byAction[change.ActionRenamed])

	if len(byCommand) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nBy command type:\n")
	type cc struct {
		name  string
		count int
	}
	counts := make([]cc, 0, len(byCommand))
	for name, count := range byCommand {
		counts = append(counts, cc{name, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	for _, c := range counts {
		fmt.Fprintf(w, "  %s: %d\n", c.name, c.count)
	}
	return nil
}

// WriteTable writes an aligned table of the first 50 changes.
func WriteTable(w io.Writer, changes []change.FileChange) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tPATH\tCOMMAND\tDETAILS")

	shown := changes
	if len(shown) > tableLimit {
		shown = shown[:tableLimit]
	}
	for _, fc := range shown {
		detail := ""
		switch {
		case fc.Details.PathTo != "":
			detail = "-> " + textutil.DisplayPath(fc.Details.PathTo)
		case fc.Details.PathLink != "":
			detail = "-> " + textutil.DisplayPath(fc.Details.PathLink)
		case fc.Details.Size != nil:
			detail = fmt.Sprintf("size: %d", *fc.Details.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			fc.Action,
			textutil.Truncate(textutil.DisplayPath(fc.Path), 60),
			fc.Details.Command,
			detail,
		)
	}
	if len(changes) > tableLimit {
		fmt.Fprintf(tw, "...\t(%d more)\t\t\n", len(changes)-tableLimit)
	}
	return tw.Flush()
}
