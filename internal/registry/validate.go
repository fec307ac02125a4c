package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/stacgridgo/internal/ctxlog"
)

// ValidateRegistry checks that every URI has a registered driver, so a
// load fails before reading anything rather than midway.
func (r *Registry) ValidateRegistry(ctx context.Context, uris []string) error {
	logger := ctxlog.FromContext(ctx)

	missing := make(map[string]string)
	for _, u := range uris {
		if _, err := r.Driver(u); err != nil {
			s := Scheme(u)
			if _, seen := missing[s]; !seen {
				missing[s] = u
			}
		}
	}
	if len(missing) == 0 {
		logger.Debug("Registry covers every resource.", "resource_count", len(uris), "schemes", r.Schemes())
		return nil
	}

	var errs []string
	for s, u := range missing {
		errs = append(errs, fmt.Sprintf("no driver for scheme '%s' (first used by %s)", s, u))
	}
	slices.Sort(errs)
	return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
}
