package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// printResult writes v as indented JSON, or text as-is, depending on --format.
func printResult(cmd *cobra.Command, opts *RootOptions, v any, text string) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
