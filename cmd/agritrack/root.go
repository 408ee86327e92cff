package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPI = "http://localhost:8080"

type commandContext struct {
	apiFlag     string
	timeoutFlag time.Duration
	jsonFlag    bool
}

func (c *commandContext) client() *apiClient {
	base := strings.TrimSpace(c.apiFlag)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("AGRITRACK_API"))
	}
	if base == "" {
		base = defaultAPI
	}
	return newAPIClient(base, c.timeoutFlag)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "agritrack",
		Short:         "AgriTrack batch traceability CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.apiFlag, "api", "", "API base URL (default $AGRITRACK_API or "+defaultAPI+")")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeoutFlag, "timeout", 15*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonFlag, "json", false, "Print raw JSON instead of tables")

	rootCmd.AddCommand(newCreateCommand(ctx))
	rootCmd.AddCommand(newTransportCommand(ctx))
	rootCmd.AddCommand(newSellCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newQRCommand(ctx))

	return rootCmd
}
