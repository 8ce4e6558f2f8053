package discovery

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"
	"github.com/core-tools/hsu-scheduler/pkg/process"
)

// Candidate is one OS process visible to discovery
type Candidate interface {
	process.Target
	Name(ctx context.Context) (string, error)
	Exe(ctx context.Context) (string, error)
}

// Lister enumerates the processes of the host
type Lister interface {
	List(ctx context.Context) ([]Candidate, error)
}

// Finder locates every running instance of a descriptor, spawned by us or not
type Finder struct {
	lister Lister
	logger logging.Logger
}

func NewFinder(lister Lister, logger logging.Logger) *Finder {
	if lister == nil {
		lister = NewSystemLister()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Finder{
		lister: lister,
		logger: logger,
	}
}

// Find returns the instances whose process name and executable path both match desc.
// Processes that cannot be inspected (exited, access denied) are skipped.
func (f *Finder) Find(ctx context.Context, desc process.Descriptor) ([]process.Target, error) {
	candidates, err := f.lister.List(ctx)
	if err != nil {
		return nil, errors.NewDiscoveryError("failed to enumerate processes", err)
	}

	wantName := normalizeName(desc.Name())
	wantPath := filepath.Clean(desc.Path())

	var matches []process.Target
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError("discovery cancelled", ctx.Err())
		}

		name, err := candidate.Name(ctx)
		if err != nil || normalizeName(name) != wantName {
			continue
		}

		exe, err := candidate.Exe(ctx)
		if err != nil {
			f.logger.Debugf("Skipping PID %d, executable path unavailable: %v", candidate.PID(), err)
			continue
		}
		if !strings.EqualFold(filepath.Clean(exe), wantPath) {
			continue
		}

		matches = append(matches, candidate)
	}

	return matches, nil
}

// normalizeName compares names the way the Windows process list shows them: no .exe, any case
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(filepath.Ext(name), ".exe") {
		name = name[:len(name)-len(".exe")]
	}
	return strings.ToLower(name)
}
