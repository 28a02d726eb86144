package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "zela",
		Short: "Conversational intake service for municipal service requests",
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the intake server",
			Run:   func(*cobra.Command, []string) { runServe() },
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(*cobra.Command, []string) {
				fmt.Println(version)
			},
		},
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
