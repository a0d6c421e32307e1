package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	EnvFile string
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "presigner",
	Short: "Presigner issues signed URLs for direct multipart uploads to object storage.",
	Long: `Presigner is a small HTTP service that brokers direct-to-storage uploads.
Clients initiate a multipart upload, request signed part URLs, upload the bytes
straight to the bucket and finally complete or abort the upload through this service.`,
	SilenceUsage: true,
}

var serveCmdFlags serveFlags
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server.",
	Long:  `Run the HTTP server. Configuration is read from APP_* environment variables and an optional .env file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), flags, serveCmdFlags)
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the effective settings.",
	Long:  `Validate the configuration and print the effective settings. Secrets are never printed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckConfig(cmd.OutOrStdout(), flags)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, checkConfigCmd)

	rootCmd.PersistentFlags().StringVarP(
		&flags.EnvFile, "env-file", "e", ".env",
		"Path to a .env file; a missing file is ignored.",
	)
	serveCmd.Flags().StringVarP(
		&serveCmdFlags.Addr, "addr", "a", "",
		"Listen address, overrides APP_LISTEN_ADDR.",
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
