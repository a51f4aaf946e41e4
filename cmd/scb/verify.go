package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scbundle/scb/internal/engine"
)

func (a *app) verifyCmd() *cobra.Command {
	var (
		ef      encodeFlags
		scratch string
	)

	cmd := &cobra.Command{
		Use:   "verify SOURCE_DIR",
		Short: "Check that a tree survives a merge and split byte for byte",
		Long: `Verify bundles SOURCE_DIR in memory with the same selection flags as
merge, splits the bundle into a scratch directory and compares BLAKE3
checksums of every file. Degraded and transcoded files are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encCfg, err := a.encodeConfig(cmd, &ef)
			if err != nil {
				return err
			}
			encCfg.Source = args[0]

			s := a.startSession(args[0])
			encCfg.Events = s.events
			encCfg.Stats = s.stats
			res, err := engine.Verify(cmd.Context(), engine.VerifyConfig{
				Encode:     encCfg,
				ScratchDir: scratch,
			})
			a.finish(s)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			for _, e := range res.Errors {
				fmt.Fprintf(a.stderr, "mismatch: %s (source %s, decoded %s)\n", e.Path, e.SrcHash, e.DstHash)
			}
			fmt.Fprintf(a.stdout, "verified %d, failed %d, skipped %d\n", res.Verified, res.Failed, res.Skipped)
			if res.Failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	ef.register(cmd.Flags())
	cmd.Flags().StringVar(&scratch, "scratch", "", "directory for the temporary decoded tree")
	return cmd
}
