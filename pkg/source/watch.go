package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
)

// watchSettle is how long writes must stop before a changed file is read
const watchSettle = 100 * time.Millisecond

// Watch reloads the graph file at p whenever it changes and passes the
// result to fn. The directory is watched so files replaced by rename are
// seen too. Watch blocks until ctx is done.
func Watch(ctx context.Context, p string, fn func(*graph.Graph, error)) error {
	p = filepath.Clean(filePath(p))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p)); err != nil {
		return fmt.Errorf("watch %s: %w", p, err)
	}

	settle := time.NewTimer(watchSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != p {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle.Reset(watchSettle)
		case <-settle.C:
			fn(Load(ctx, p))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fn(nil, fmt.Errorf("watch %s: %w", p, err))
		}
	}
}
