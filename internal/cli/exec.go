package cli

import (
	"github.com/spf13/cobra"
)

// NewExecCommand runs a raw SQL statement. Reads go through the
// dangerous-keyword sniffer; --unsafe bypasses it.
func NewExecCommand(opts *RootOptions) *cobra.Command {
	var (
		configPath string
		unsafe     bool
	)

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a raw SQL statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer client.Close()

			run := client.RawQuery
			if unsafe {
				run = client.UnsafeExec
			}
			rows, err := run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), rows, opts.Format)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "ebb.yaml", "config file")
	cmd.Flags().BoolVar(&unsafe, "unsafe", false, "bypass the statement sniffer")

	return cmd
}
