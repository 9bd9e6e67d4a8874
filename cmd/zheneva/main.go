package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "zheneva",
		Short: "Housing listings workflow: submission bots, moderation, publication",
	}
	root.AddCommand(newServeCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run both bot pollers, the session sweep, and the admin API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}
