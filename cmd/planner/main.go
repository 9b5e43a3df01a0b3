package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Planner: teams, boards and tasks",
	Long:  "Planner manages users, teams, project boards and tasks, keeps the references between them consistent, and exports board reports.",
	// Errors are reported once by main.
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (e.g. configs/planner.yaml; defaults and PLANNER_* env apply without one)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
