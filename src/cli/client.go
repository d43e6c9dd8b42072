package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stake-plus/ibots/src/control/client"
)

// ClientOptions are the ibots global flags.
type ClientOptions struct {
	Server  string
	Port    int
	Secret  string
	Timeout time.Duration
}

// NewClientCommand creates the ibots root command.
func NewClientCommand() *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:   "ibots",
		Short: "Control a running ibots server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Secret == "" {
				opts.Secret = os.Getenv("IBOTS_CONTROL__JWT_SECRET")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", "localhost", "control plane host or URL")
	cmd.PersistentFlags().IntVarP(&opts.Port, "port", "p", 8000, "control plane port")
	cmd.PersistentFlags().StringVar(&opts.Secret, "secret", "", "JWT secret (default $IBOTS_CONTROL__JWT_SECRET)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "request timeout")

	for _, route := range []struct{ use, short string }{
		{"status", "Show bot status"},
		{"start", "Start bots (default all stopped)"},
		{"stop", "Stop bots (default all running)"},
		{"wipe", "Delete stored state of stopped bots"},
	} {
		cmd.AddCommand(newBotsCommand(opts, route.use, route.short))
	}
	cmd.AddCommand(newInstructionCommand(opts, "bot", "Send an instruction to running bots"))
	cmd.AddCommand(newInstructionCommand(opts, "resource", "Send an instruction to resources"))
	cmd.AddCommand(newInteractCommand(opts))
	return cmd
}

func (o *ClientOptions) client() *client.Client {
	return client.New(client.Options{Server: o.Server, Port: o.Port, Secret: o.Secret, Timeout: o.Timeout})
}

func newBotsCommand(opts *ClientOptions, route, short string) *cobra.Command {
	var bots []string
	cmd := &cobra.Command{
		Use:          route,
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := opts.client().Post(cmd.Context(), route, map[string][]string{"bots": bots})
			return printResponse(cmd, resp, err)
		},
	}
	cmd.Flags().StringSliceVarP(&bots, "bots", "b", nil, "bots to target (default all applicable)")
	return cmd
}

func newInstructionCommand(opts *ClientOptions, route, short string) *cobra.Command {
	return &cobra.Command{
		Use:          route + " <targets...> <instruction>",
		Short:        short,
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, instruction := args[:len(args)-1], args[len(args)-1]
			resp, err := opts.client().Post(cmd.Context(), route, map[string][]string{
				"targets":     targets,
				"instruction": {instruction},
			})
			return printResponse(cmd, resp, err)
		},
	}
}

func newInteractCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "interact <target>",
		Short:        "Ask a running bot for an inspection of its live state",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Interact(cmd.Context(), args[0])
			return printResponse(cmd, resp, err)
		},
	}
}

// printResponse prints whatever the server answered. Only transport failures
// make the command fail.
func printResponse(cmd *cobra.Command, resp *client.Response, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), client.Pretty(resp.Body))
	return nil
}
