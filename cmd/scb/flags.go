package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scbundle/scb/internal/engine"
	"github.com/scbundle/scb/internal/filter"
)

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

var _ pflag.Value = (*filterFlag)(nil)

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

// encodeFlags are the selection flags shared by merge and verify.
type encodeFlags struct {
	chain           *filter.Chain
	extensions      []string
	allExtensions   bool
	filterFile      string
	minSize         string
	maxSize         string
	gitignore       bool
	encodings       []string
	includeRootName bool
	noIndex         bool
}

func (f *encodeFlags) register(fl *pflag.FlagSet) {
	f.chain = filter.NewChain()
	fl.StringSliceVarP(&f.extensions, "ext", "e", nil,
		"bundle files with these extensions (repeatable, default .py,.rs,.c,.h,.cpp,.hpp,.css)")
	fl.BoolVar(&f.allExtensions, "all-extensions", false, "bundle files of any extension")
	fl.Var(&filterFlag{chain: f.chain}, "exclude", "exclude files matching PATTERN (repeatable)")
	fl.Var(&filterFlag{chain: f.chain, include: true}, "include", "include files matching PATTERN (repeatable)")
	fl.StringVar(&f.filterFile, "filter", "", "read filter rules from FILE")
	fl.StringVar(&f.minSize, "min-size", "", "skip files smaller than SIZE (e.g. 1K)")
	fl.StringVar(&f.maxSize, "max-size", "", "skip files larger than SIZE (e.g. 10M)")
	fl.BoolVar(&f.gitignore, "gitignore", false, "honour the source directory's .gitignore")
	fl.StringSliceVar(&f.encodings, "encoding", nil,
		"fallback encodings tried after UTF-8 (repeatable, default windows-1252,iso-8859-1)")
	fl.BoolVar(&f.includeRootName, "include-root-name", false, "prefix bundle paths with the source directory name")
	fl.BoolVar(&f.noIndex, "no-index", false, "omit the file index block")
}

// encodeConfig resolves flags against the project file and the user
// config. A flag set on the command line always wins, then the project,
// then the user config, then built-in defaults.
func (a *app) encodeConfig(cmd *cobra.Command, f *encodeFlags) (engine.EncodeConfig, error) {
	defaults := a.cfg.Defaults
	changed := cmd.Flags().Changed

	if !changed("gitignore") && defaults.Gitignore != nil {
		f.gitignore = *defaults.Gitignore
	}
	if !changed("encoding") && len(defaults.Encodings) > 0 {
		f.encodings = defaults.Encodings
	}
	if !changed("no-index") && defaults.Index != nil {
		f.noIndex = !*defaults.Index
	}

	var exts filter.Extensions
	switch {
	case f.allExtensions:
	case changed("ext"):
		exts = filter.ParseExtensions(f.extensions)
	case len(a.project.Extensions) > 0:
		exts = filter.ParseExtensions(a.project.Extensions)
	case len(defaults.Extensions) > 0:
		exts = filter.ParseExtensions(defaults.Extensions)
	default:
		exts = filter.ParseExtensions(filter.DefaultExtensions)
	}

	if f.filterFile != "" {
		if err := f.chain.LoadFile(f.filterFile); err != nil {
			return engine.EncodeConfig{}, err
		}
	}
	for _, rule := range a.project.EnabledFilters() {
		if err := f.chain.Add(rule); err != nil {
			return engine.EncodeConfig{}, fmt.Errorf("project filter %q: %w", rule, err)
		}
	}
	if f.minSize != "" {
		n, err := filter.ParseSize(f.minSize)
		if err != nil {
			return engine.EncodeConfig{}, fmt.Errorf("--min-size: %w", err)
		}
		f.chain.SetMinSize(n)
	}
	if f.maxSize != "" {
		n, err := filter.ParseSize(f.maxSize)
		if err != nil {
			return engine.EncodeConfig{}, fmt.Errorf("--max-size: %w", err)
		}
		f.chain.SetMaxSize(n)
	}

	slog.Debug("encode settings",
		"extensions", exts.Sorted(), "rules", f.chain.Len(), "gitignore", f.gitignore, "encodings", f.encodings)

	return engine.EncodeConfig{
		Extensions:      exts,
		Filter:          f.chain,
		Gitignore:       f.gitignore,
		Fallbacks:       f.encodings,
		Index:           !f.noIndex,
		IncludeRootName: f.includeRootName,
		Logger:          a.logger,
	}, nil
}

// overwriteMode resolves --overwrite-mode the same way.
func (a *app) overwriteMode(cmd *cobra.Command, flagValue string) (engine.OverwriteMode, error) {
	v := flagValue
	if !cmd.Flags().Changed("overwrite-mode") {
		switch {
		case a.project.OverwriteMode != "":
			v = string(a.project.OverwriteMode)
		case a.cfg.Defaults.OverwriteMode != nil:
			v = *a.cfg.Defaults.OverwriteMode
		}
	}
	return engine.ParseOverwriteMode(v)
}

// reportExit maps a report onto the process exit code: 0 when every file
// was handled, 1 when some failed.
func reportExit(r engine.Report) error {
	if r.Failed() > 0 {
		return &exitError{code: 1}
	}
	return nil
}
