package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erraggy/oasguard"
	"github.com/erraggy/oasguard/internal/cliutil"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "oasguard",
		Short: "Request validation for declarative API contracts",
		Long: `oasguard compiles operation contracts (headers, query parameters, request
bodies and response media types) into request validation middleware.

Configuration is read from an optional config file, OASGUARD_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfig(v, cmd)
		},
	}
	root.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "json", "log format: json or console")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newCheckCmd(v), newServeCmd(v), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cliutil.Writef(cmd.OutOrStdout(), "oasguard %s", oasguard.BuildInfo())
		},
	}
}
