package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scbundle/scb/internal/config"
	"github.com/scbundle/scb/internal/engine"
)

func (a *app) mergeCmd() *cobra.Command {
	var (
		ef       encodeFlags
		root     string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "merge SOURCE... OUTPUT",
		Short: "Merge a source tree or a list of files into one bundle",
		Long: `Merge walks SOURCE (a directory) and writes every matching file into the
bundle OUTPUT. With several SOURCE arguments, or a single regular file, the
files are bundled as given and every filter is bypassed; their bundle paths
are relative to --root or to their deepest common directory.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("compress") && a.cfg.Defaults.Compress != nil {
				compress = *a.cfg.Defaults.Compress
			}

			encCfg, err := a.encodeConfig(cmd, &ef)
			if err != nil {
				return err
			}

			sources, output := args[:len(args)-1], args[len(args)-1]
			displayRoot := root
			if len(sources) == 1 && isDir(sources[0]) {
				encCfg.Source = sources[0]
				displayRoot = sources[0]
			} else {
				encCfg.Files = sources
				encCfg.Root = root
			}

			s := a.startSession(displayRoot)
			encCfg.Events = s.events
			encCfg.Stats = s.stats
			res, err := engine.Merge(cmd.Context(), engine.MergeConfig{
				EncodeConfig: encCfg,
				Output:       output,
				Compress:     compress,
			})
			a.finish(s)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}

			if len(sources) == 1 {
				a.remember(config.RecentMergeSource, sources[0], config.RecentMergeOutput, output)
			} else {
				a.remember(config.RecentMergeOutput, output)
			}
			return reportExit(res.Report)
		},
	}

	ef.register(cmd.Flags())
	cmd.Flags().StringVar(&root, "root", "", "directory bundle paths are relative to (file list mode)")
	cmd.Flags().BoolVar(&compress, "compress", false, "write the bundle as a zstd frame")
	return cmd
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
