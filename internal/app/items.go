package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/fsutil"
	"github.com/vk/stacgridgo/internal/stac"
)

// itemExtensions are the files read from an items directory.
var itemExtensions = []string{".json", ".geojson", ".ndjson", ".jsonl"}

// readItems loads STAC items from a file or from every item file under a
// directory, in path order.
func readItems(ctx context.Context, path string) ([]*stac.Item, error) {
	logger := ctxlog.FromContext(ctx)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("items path: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		if files, err = fsutil.FindFiles([]string{path}, itemExtensions...); err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no item files found in %s", path)
		}
	}

	var items []*stac.Item
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			return nil, err
		}
		found, err := stac.ReadItems(fh)
		fh.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		items = append(items, found...)
	}
	logger.Debug("Items read.", "files", len(files), "item_count", len(items))
	return items, nil
}
