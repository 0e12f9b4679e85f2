package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/parley/cmd/gen"
	"github.com/luma/parley/internal/meta"
)

var RootCmd = &cobra.Command{
	Use:     "parley",
	Short:   "A line-oriented multi-user chat service",
	Version: meta.Version,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(JoinCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
