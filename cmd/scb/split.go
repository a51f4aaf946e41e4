package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scbundle/scb/internal/config"
	"github.com/scbundle/scb/internal/engine"
)

func (a *app) splitCmd() *cobra.Command {
	var (
		mode   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "split BUNDLE DIR",
		Short: "Split a bundle back into a directory tree",
		Long: `Split decodes BUNDLE and writes each file under DIR. Paths that would
escape DIR are rejected. Files that already exist are handled according to
--overwrite-mode: rename (default) keeps the old file and writes name_N,
overwrite replaces it, skip leaves it alone.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundlePath, dest := args[0], args[1]
			om, err := a.overwriteMode(cmd, mode)
			if err != nil {
				return err
			}

			s := a.startSession(dest)
			rep, err := engine.Split(cmd.Context(), engine.SplitConfig{
				Bundle: bundlePath,
				MaterializeConfig: engine.MaterializeConfig{
					Root:   dest,
					Mode:   om,
					DryRun: dryRun,
					Events: s.events,
					Stats:  s.stats,
					Logger: a.logger,
				},
			})
			a.finish(s)
			if err != nil {
				return fmt.Errorf("split: %w", err)
			}

			for _, r := range rep.Renamed {
				a.logger.Info("renamed", "from", r.From, "to", r.To)
			}
			if !dryRun {
				a.remember(config.RecentSplitBundle, bundlePath, config.RecentSplitDest, dest)
			}
			return reportExit(rep)
		},
	}

	cmd.Flags().StringVar(&mode, "overwrite-mode", "rename", "existing files: rename, overwrite or skip")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be written without writing")
	return cmd
}
