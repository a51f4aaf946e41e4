package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
)

// Keys of Project.RecentPaths.
const (
	RecentMergeSource = "merge_source"
	RecentMergeOutput = "merge_output"
	RecentSplitBundle = "split_bundle"
	RecentSplitDest   = "split_destination"
	RecentPatchFile   = "patch_file"
	RecentPatchTarget = "patch_target"
)

// maxRecent bounds each recent-path history.
const maxRecent = 10

// Project is the per-project settings document. It is read as defaults for
// a run and updated with the paths of successful runs.
type Project struct {
	Extensions    Extensions          `json:"extensions"`
	Filters       []Filter            `json:"filters"`
	OverwriteMode OverwriteSetting    `json:"overwrite_mode,omitempty"`
	RecentPaths   RecentPaths         `json:"recent_paths,omitempty"`
}

// Filter is one include/exclude rule in the filter syntax of the
// filter package. Disabled rules are kept but not applied.
type Filter struct {
	Pattern string `json:"pattern"`
	Enabled bool   `json:"enabled"`
}

// Extensions is the enabled extension list. It also decodes the older
// object form {".py": true, ".c": false}, keeping enabled entries.
type Extensions []string

func (e *Extensions) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*e = list
		return nil
	}
	var toggles map[string]bool
	if err := json.Unmarshal(data, &toggles); err != nil {
		return fmt.Errorf("extensions: want a list or an object of booleans: %w", err)
	}
	out := make([]string, 0, len(toggles))
	for ext, on := range toggles {
		if on {
			out = append(out, ext)
		}
	}
	slices.Sort(out)
	*e = out
	return nil
}

// OverwriteSetting is an overwrite mode name. It also decodes the older
// boolean form, where true means "overwrite" and false leaves the default.
type OverwriteSetting string

func (o *OverwriteSetting) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*o = "overwrite"
		} else {
			*o = ""
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("overwrite_mode: want a string or boolean: %w", err)
	}
	*o = OverwriteSetting(s)
	return nil
}

// RecentPaths maps an operation key to its history, most recent first.
// A bare string value, as older project files store it, decodes as a
// one-entry history.
type RecentPaths map[string][]string

func (r *RecentPaths) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("recent_paths: want an object: %w", err)
	}
	out := make(RecentPaths, len(raw))
	for key, v := range raw {
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			if one != "" {
				out[key] = []string{one}
			}
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err != nil {
			return fmt.Errorf("recent_paths.%s: want a path or a list of paths: %w", key, err)
		}
		out[key] = list
	}
	*r = out
	return nil
}

// EnabledFilters returns the patterns of enabled filter rules in order.
func (p Project) EnabledFilters() []string {
	var out []string
	for _, f := range p.Filters {
		if f.Enabled && f.Pattern != "" {
			out = append(out, f.Pattern)
		}
	}
	return out
}

// Recent returns the most recent path stored under key, or "".
func (p Project) Recent(key string) string {
	if h := p.RecentPaths[key]; len(h) > 0 {
		return h[0]
	}
	return ""
}

// Remember moves path to the front of the history for key.
func (p *Project) Remember(key, path string) {
	if path == "" {
		return
	}
	if p.RecentPaths == nil {
		p.RecentPaths = make(RecentPaths)
	}
	h := slices.DeleteFunc(slices.Clone(p.RecentPaths[key]), func(s string) bool { return s == path })
	h = append([]string{path}, h...)
	if len(h) > maxRecent {
		h = h[:maxRecent]
	}
	p.RecentPaths[key] = h
}

// LoadProject reads a project file. A missing file yields an empty Project.
func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Project{}, nil
		}
		return Project{}, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("parse project %s: %w", path, err)
	}
	return p, nil
}

// SaveProject writes p to path atomically through a sibling temp file.
func SaveProject(path string, p Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()[:8]))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace project: %w", err)
	}
	return nil
}
