package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage the graph artifact",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the graph artifact with a typed graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open graph document: %w", err)
			}
			defer f.Close()

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			g, err := svc.ImportGraph(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.logger.Info("Imported graph",
				zap.String("file", args[0]),
				zap.Int("nodes", g.Len()),
				zap.Int("edges", len(g.Edges())),
			)
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [file.json]",
		Short: "Write the graph artifact as a document (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			if len(args) == 0 {
				return svc.ExportGraph(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			if err := svc.ExportGraph(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show graph artifact metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			info, err := svc.GraphInfo(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}

	cmd.AddCommand(importCmd, exportCmd, infoCmd)
	return cmd
}
