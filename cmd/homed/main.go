package main

import (
	"os"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		if !cmd.IsSilent(err) {
			verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
			cli.NewErrorHandler(verbose).Handle(err)
		}
		os.Exit(1)
	}
}
