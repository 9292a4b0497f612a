package shellutil

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// RenderTable writes rows as a minimal aligned table, for `list -o`'s
// (kind, name, refcount) triples and friends.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	defer tw.Flush()

	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
}

func writeRow(tw *tabwriter.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprint(tw, "\n")
}
