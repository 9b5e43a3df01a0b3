package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <board-id>",
	Short: "Write a board report to the export directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.boards.Export(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Board exported to: %s\n", res.Path)
	fmt.Printf("Tasks: %d total, %d open, %d in progress, %d complete\n",
		res.Counts.Total, res.Counts.Open, res.Counts.InProgress, res.Counts.Complete)
	return nil
}
