package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewReviewCommand creates the review command. With --incoming it submits a
// dataset for review; with --id it shows a pending review.
func NewReviewCommand(rootOpts *RootOptions) *cobra.Command {
	var incoming, id string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Diff a dataset on the server, or show a pending review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (incoming == "") == (id == "") {
				return errors.New("exactly one of --incoming or --id is required")
			}

			var (
				r   Review
				err error
			)
			if incoming != "" {
				records, rerr := readDataset(incoming, cmd.InOrStdin())
				if rerr != nil {
					return rerr
				}
				r, err = rootOpts.client().Diff(cmd.Context(), records)
			} else {
				r, err = rootOpts.client().Review(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			printReview(cmd.OutOrStdout(), r)
			return nil
		},
	}

	cmd.Flags().StringVar(&incoming, "incoming", "", "incoming dataset file")
	cmd.Flags().StringVar(&id, "id", "", "pending review id")

	return cmd
}
