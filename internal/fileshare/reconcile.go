package fileshare

import (
	"context"
	"errors"
	"time"
)

// ReconcileOptions controls a Reconcile run.
type ReconcileOptions struct {
	// GracePeriod protects blobs younger than this from removal, so a blob
	// whose SaveFile has not inserted its row yet is never taken for an orphan.
	GracePeriod time.Duration

	// DryRun reports orphans without removing them.
	DryRun bool
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	Scanned int
	Orphans []string
	Removed int
}

// Reconcile enumerates the blob store and removes blobs that no file row
// references. These are left behind by a SaveFile whose insert failed or by
// an upload abandoned between the blob write and the insert.
//
// Blobs are matched to rows by stored filename, not storage path: the same
// upload directory may be spelled differently than when a row was written.
func (s *Service) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	names, err := s.metadata.ListStoredFilenames(ctx)
	if err != nil {
		return nil, metadataErr("listing stored filenames", err)
	}
	referenced := make(map[string]struct{}, len(names))
	for _, n := range names {
		referenced[n] = struct{}{}
	}

	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, storageErr("listing blobs", err)
	}

	cutoff := s.clock.Now().Add(-opts.GracePeriod)
	report := &ReconcileReport{Scanned: len(blobs)}

	for _, b := range blobs {
		if _, ok := referenced[b.Name]; ok {
			continue
		}
		if b.ModifiedAt.After(cutoff) {
			continue
		}
		report.Orphans = append(report.Orphans, b.Path)

		if opts.DryRun {
			continue
		}
		if err := s.blobs.Remove(ctx, b.Path); err != nil {
			if errors.Is(err, ErrBlobNotFound) {
				continue
			}
			return report, storageErr("removing orphan blob", err)
		}
		report.Removed++
		s.logger.Info("orphan blob removed", "path", b.Path)
	}

	s.logger.Info("reconcile complete", "scanned", report.Scanned, "orphans", len(report.Orphans), "removed", report.Removed, "dry_run", opts.DryRun)
	return report, nil
}
