package cli

import (
	service "github.com/okian/gestor/internal/app"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
	"github.com/spf13/cobra"
)

type diffResult struct {
	Events   []change.Wire        `json:"events"`
	Rejected []classify.Rejection `json:"rejected"`
}

// NewDiffCommand creates the offline diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var baseline, incoming string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two dataset files without contacting a server",
		Long: `Compare a baseline dataset with an incoming one and print the detected
changes. Files hold a JSON array of records or an object with a "records"
array; "-" reads stdin. Identity collisions fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := readDataset(baseline, cmd.InOrStdin())
			if err != nil {
				return err
			}
			next, err := readDataset(incoming, cmd.InOrStdin())
			if err != nil {
				return err
			}

			events, rejected, err := service.Compare(base, next)
			if err != nil {
				return err
			}

			res := diffResult{Events: change.EncodeAll(events), Rejected: rejected}
			if res.Rejected == nil {
				res.Rejected = []classify.Rejection{}
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printEvents(cmd.OutOrStdout(), res.Events, res.Rejected)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseline, "baseline", "", "baseline dataset file")
	cmd.Flags().StringVar(&incoming, "incoming", "", "incoming dataset file")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("incoming")

	return cmd
}
