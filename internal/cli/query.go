package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebb-sync/ebb"
)

// NewQueryCommand runs a read operation given as JSON against the
// configured database.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	var (
		configPath string
		table      string
		op         string
	)

	cmd := &cobra.Command{
		Use:   "query [input-json]",
		Short: "Run a structured read operation",
		Long: `Run a findUnique, findFirst, or findMany operation.

The input is the operation's JSON payload, e.g.:

  ebb query --table Post --op findMany '{"where": {"published": true}}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			input := ebb.Input{}
			if len(args) == 1 {
				if err := json.Unmarshal([]byte(args[0]), &input); err != nil {
					return fmt.Errorf("parse input: %w", err)
				}
			}

			ctx := cmd.Context()
			var rows []ebb.Row
			switch op {
			case "findUnique":
				row, err := client.Table(table).FindUnique(ctx, input)
				if err != nil {
					return err
				}
				if row != nil {
					rows = []ebb.Row{row}
				}
			case "findFirst":
				row, err := client.Table(table).FindFirst(ctx, input)
				if err != nil {
					return err
				}
				if row != nil {
					rows = []ebb.Row{row}
				}
			case "findMany":
				rows, err = client.Table(table).FindMany(ctx, input)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown operation %q: must be findUnique, findFirst, or findMany", op)
			}

			return writeRows(cmd.OutOrStdout(), rows, opts.Format)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "ebb.yaml", "config file")
	cmd.Flags().StringVar(&table, "table", "", "table to query (required)")
	cmd.Flags().StringVar(&op, "op", "findMany", "operation kind")
	cmd.MarkFlagRequired("table")

	return cmd
}
