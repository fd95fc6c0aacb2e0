package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ebb-sync/ebb"
)

// writeRows prints query results in the selected format.
func writeRows(w io.Writer, rows []ebb.Row, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w, "---")
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %v\n", k, row[k])
		}
	}
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}
