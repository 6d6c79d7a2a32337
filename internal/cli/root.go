// Package cli implements gestorctl, the command line front end for diffing
// datasets offline and driving a running gestor server.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultServer  = "http://localhost:9080"
	defaultTimeout = 2 * time.Minute
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Timeout time.Duration
	JSON    bool
}

// NewRootCommand creates the gestorctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "gestorctl",
		Short:         "Reconcile client datasets against a baseline snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", defaultServer, "gestor server base URL")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaultTimeout, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print JSON instead of text")

	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewReviewCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

func (o *RootOptions) client() *Client {
	return NewClient(o.Server, o.Timeout)
}
