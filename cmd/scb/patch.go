package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scbundle/scb/internal/config"
	"github.com/scbundle/scb/internal/patch"
)

func (a *app) patchCmd() *cobra.Command {
	var (
		strip   int
		dryRun  bool
		binary  string
		timeout string
	)

	cmd := &cobra.Command{
		Use:   "patch PATCHFILE DIR",
		Short: "Apply a unified diff to a directory with per-file results",
		Long: `Patch applies PATCHFILE (unified diff, "-" for stdin) to the tree in DIR
with the external patch tool and reports every target file. Sections whose
paths would escape DIR are refused before the tool runs. The strip level
is detected from a/ and b/ prefixes unless -p is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchFile, dir := args[0], args[1]
			if !cmd.Flags().Changed("patch-binary") && a.cfg.Defaults.PatchBinary != nil {
				binary = *a.cfg.Defaults.PatchBinary
			}

			text, err := readPatch(cmd, patchFile)
			if err != nil {
				return err
			}

			tool := patch.NewGNUPatch(
				patch.WithBinary(binary),
				patch.WithTimeout(timeout),
				patch.WithLogger(a.logger),
			)

			s := a.startSession(dir)
			rep, err := patch.Apply(cmd.Context(), tool, text, dir, patch.Options{
				Strip:  strip,
				DryRun: dryRun,
				Events: s.events,
				Logger: a.logger,
			})
			a.finish(s)
			if err != nil {
				return fmt.Errorf("patch: %w", err)
			}

			for _, r := range rep.Results {
				status := "ok"
				if !r.Succeeded {
					status = "FAILED"
				}
				fmt.Fprintf(a.stdout, "%-6s %s: %s\n", status, r.TargetFile, r.Message)
			}
			if !dryRun && patchFile != "-" {
				a.remember(config.RecentPatchFile, patchFile, config.RecentPatchTarget, dir)
			}
			if len(rep.Failed()) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&strip, "strip", "p", patch.AutoStrip, "strip N leading path components (default: detect)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "check the patch without changing files")
	cmd.Flags().StringVar(&binary, "patch-binary", "patch", "patch executable to run")
	cmd.Flags().StringVar(&timeout, "timeout", "", "abort the patch tool after DURATION (e.g. 30s)")
	return cmd
}

func readPatch(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read patch from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	return data, nil
}
