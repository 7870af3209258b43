package suite

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/feedparity/feedparity-go/internal/manifest"
)

// DiscoverOptions bounds corpus discovery.
type DiscoverOptions struct {
	// MaxZipBytes skips zip inputs larger than this. Zero disables the limit.
	MaxZipBytes int64
	Logger      *slog.Logger
}

// Discovery is the result of scanning corpus roots.
type Discovery struct {
	Cases []Case
	// SkippedBySize lists zip inputs over the size limit.
	SkippedBySize []string
}

// Discover scans roots recursively for feed inputs: .zip files and
// directories holding at least one .txt file. Hidden path segments and paths
// mentioning "output" are skipped, as are roots that do not exist. Cases are
// sorted by path; names are the root-relative path with separators replaced
// by underscores, zip inputs suffixed with _zip.
func Discover(roots []string, opts DiscoverOptions) (Discovery, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var d Discovery
	seen := make(map[string]bool)
	rootOf := make(map[string]string)
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			logger.Warn("corpus root does not exist, skipping", "root", root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if skipped(rel) {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if seen[path] {
				return nil
			}

			switch {
			case entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".zip"):
				if opts.MaxZipBytes > 0 {
					info, err := entry.Info()
					if err != nil {
						return err
					}
					if info.Size() > opts.MaxZipBytes {
						d.SkippedBySize = append(d.SkippedBySize, path)
						return nil
					}
				}
				seen[path] = true
				rootOf[path] = root
				d.Cases = append(d.Cases, Case{Name: caseName(rel) + "_zip", Path: path})
			case entry.IsDir():
				ok, err := hasTxtFile(path)
				if err != nil {
					return err
				}
				if ok {
					seen[path] = true
					rootOf[path] = root
					d.Cases = append(d.Cases, Case{Name: caseName(rel), Path: path})
				}
			}
			return nil
		})
		if err != nil {
			return d, fmt.Errorf("suite: scan %s: %w", root, err)
		}
	}

	sort.Slice(d.Cases, func(i, j int) bool { return d.Cases[i].Path < d.Cases[j].Path })
	sort.Strings(d.SkippedBySize)

	// The same relative feed under two roots gets the root's base name as a
	// prefix.
	count := make(map[string]int, len(d.Cases))
	for _, c := range d.Cases {
		count[c.Name]++
	}
	for i, c := range d.Cases {
		if count[c.Name] > 1 {
			d.Cases[i].Name = filepath.Base(filepath.Clean(rootOf[c.Path])) + "_" + c.Name
		}
	}
	d.Cases = uniqueNames(d.Cases, logger)
	return d, nil
}

// uniqueNames suffixes _2, _3 and so on to repeated case names, keeping the
// first occurrence as is.
func uniqueNames(cases []Case, logger *slog.Logger) []Case {
	used := make(map[string]bool, len(cases))
	out := make([]Case, len(cases))
	for i, c := range cases {
		name := c.Name
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", c.Name, n)
		}
		if name != c.Name {
			logger.Warn("case name already taken, renamed", "case", c.Name, "renamed", name, "path", c.Path)
		}
		used[name] = true
		c.Name = name
		out[i] = c
	}
	return out
}

// CasesFromManifest maps manifest entries into parity cases.
func CasesFromManifest(entries []manifest.Entry) []Case {
	cases := make([]Case, 0, len(entries))
	for _, e := range entries {
		cases = append(cases, Case{Name: e.CaseName, Path: e.FeedPath})
	}
	return cases
}

func skipped(rel string) bool {
	if strings.Contains(rel, "output") {
		return true
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func caseName(rel string) string {
	return strings.ReplaceAll(rel, "/", "_")
}

func hasTxtFile(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".txt" {
			return true, nil
		}
	}
	return false, nil
}
