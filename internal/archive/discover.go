package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xarchive/internal/store"
)

// List returns the final archives in dir, most recently modified first.
func List(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+store.ArchiveSuffix))
	if err != nil {
		return nil, err
	}

	mtimes := make(map[string]int64, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		mtimes[p] = info.ModTime().UnixNano()
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return mtimes[paths[i]] > mtimes[paths[j]]
	})
	return paths, nil
}

// Loaded pairs a path with its archive or the error that prevented loading it.
type Loaded struct {
	Path    string
	Archive *Archive
	Err     error
}

// LoadAll loads paths concurrently. A broken file yields an error in its own
// slot and does not affect the others. Results keep the order of paths.
func LoadAll(ctx context.Context, paths []string) []Loaded {
	results := make([]Loaded, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, p := range paths {
		g.Go(func() error {
			results[i].Path = p
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Archive, results[i].Err = Load(p)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
