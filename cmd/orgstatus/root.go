package main

import (
	"github.com/spf13/cobra"
)

var cfgFilePath string

var rootCmd = &cobra.Command{
	Use:   "orgstatus",
	Short: "Multi-tenant status page server",
	Long: `orgstatus hosts status pages for many organizations. Members track
their services, declare incidents and post updates; the public page and
realtime subscribers see every change as it happens.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFilePath, "config", "", "config file (default is $ORGSTATUS_CONFIG)")
}
