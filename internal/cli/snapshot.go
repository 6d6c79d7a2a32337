package cli

import (
	"github.com/spf13/cobra"
)

// NewSnapshotCommand groups the snapshot subcommands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or replace the server's baseline snapshot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rootOpts.client().Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshotAs(cmd, rootOpts, s)
		},
	})

	var file string
	capture := &cobra.Command{
		Use:   "capture",
		Short: "Replace the baseline with a dataset file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := readDataset(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := rootOpts.client().Capture(cmd.Context(), records)
			if err != nil {
				return err
			}
			return printSnapshotAs(cmd, rootOpts, s)
		},
	}
	capture.Flags().StringVar(&file, "file", "", "dataset file")
	_ = capture.MarkFlagRequired("file")
	cmd.AddCommand(capture)

	var owner string
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Capture the baseline from the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rootOpts.client().Refresh(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printSnapshotAs(cmd, rootOpts, s)
		},
	}
	refresh.Flags().StringVar(&owner, "owner", "", "only capture this owner's records")
	cmd.AddCommand(refresh)

	return cmd
}

func printSnapshotAs(cmd *cobra.Command, opts *RootOptions, s Snapshot) error {
	if opts.JSON {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	printSnapshot(cmd.OutOrStdout(), s)
	return nil
}
