package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		reviewID string
		accept   string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the accepted events of a pending review",
		Long: `Apply a pending review on the server. --accept takes comma separated
event indexes; without it every event is applied and "none" applies nothing.
The command fails when any event failed to apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var indexes []int
			if cmd.Flags().Changed("accept") {
				var err error
				if indexes, err = parseAccept(accept); err != nil {
					return err
				}
			}

			rep, err := rootOpts.client().Apply(cmd.Context(), reviewID, indexes)
			if err != nil {
				return err
			}

			if rootOpts.JSON {
				err = writeJSON(cmd.OutOrStdout(), rep)
			} else {
				printReport(cmd.OutOrStdout(), rep)
			}
			if err == nil && rep.Outcome.Failed > 0 {
				err = fmt.Errorf("%d event(s) failed to apply", rep.Outcome.Failed)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&reviewID, "review", "", "review id")
	cmd.Flags().StringVar(&accept, "accept", "", `event indexes to apply, e.g. "0,2", or "none"`)
	_ = cmd.MarkFlagRequired("review")

	return cmd
}

// parseAccept turns "0, 2" into [0 2] and "none" into an empty selection.
func parseAccept(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "none" {
		return []int{}, nil
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty list", ErrSelection)
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q is not an event index", ErrSelection, p)
		}
		out = append(out, n)
	}
	return out, nil
}
