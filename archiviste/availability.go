// CLAUDE:SUMMARY Availability checks: primary API, CDX point fallback, www-variant merge, bulk form.
package archiviste

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// maxBulkURLs bounds one bulk availability request.
const maxBulkURLs = 50

// AvailabilityOptions tunes one availability check.
type AvailabilityOptions struct {
	// SkipWWWVariant disables the www/non-www retry after a miss on the
	// requested form. The variant check is on by default.
	SkipWWWVariant bool
}

// CheckAvailability reports whether target is archived and returns its
// closest capture. Resolution order: the availability API, then a CDX closest
// lookup (the availability API misses some indexed captures), then the same
// two steps against the www/non-www variant of the URL. Each URL form is
// cached under its own key, so the variant probe of one request serves as the
// primary of another.
func (s *Service) CheckAvailability(ctx context.Context, target, timestamp string, opts AvailabilityOptions) (*AvailabilityResult, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}
	timestamp = NormalizeTimestamp(timestamp)

	r, err := s.lookupCached(ctx, target, timestamp)
	if err != nil {
		return nil, err
	}
	if r.IsArchived || opts.SkipWWWVariant {
		return r, nil
	}

	variant, err := wwwVariant(target)
	if err != nil {
		return nil, err
	}
	v, err := s.lookupCached(ctx, variant, timestamp)
	if err != nil {
		return nil, err
	}
	if v.IsArchived {
		merged := *v
		merged.URL = target
		merged.CheckedVariant = variant
		return &merged, nil
	}
	return r, nil
}

// lookupCached resolves one URL form through the cache. A miss runs the
// two-step probe and stores the per-URL result, archived or not.
func (s *Service) lookupCached(ctx context.Context, target, timestamp string) (*AvailabilityResult, error) {
	key := cache.Key("availability", map[string]any{"url": target, "timestamp": timestamp})
	var result AvailabilityResult
	err := s.cached(key, s.config.TTL.Availability, &result, func() error {
		r, err := s.lookupOne(ctx, target, timestamp)
		if err != nil {
			return err
		}
		if r == nil {
			r = &AvailabilityResult{URL: target}
		}
		result = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// lookupOne resolves one URL form. A nil result with nil error means "not
// found here"; the caller keeps probing.
func (s *Service) lookupOne(ctx context.Context, target, timestamp string) (*AvailabilityResult, error) {
	resp, err := s.client.Availability(ctx, target, timestamp)
	if err != nil && !errors.Is(err, wbclient.ErrNotArchived) {
		return nil, err
	}
	if resp != nil && resp.ArchivedSnapshots.Closest != nil && resp.ArchivedSnapshots.Closest.Available {
		closest := resp.ArchivedSnapshots.Closest
		snap := &Snapshot{
			Timestamp:  closest.Timestamp,
			URL:        target,
			StatusCode: closest.Status,
		}
		return &AvailabilityResult{
			URL:             target,
			IsArchived:      true,
			ClosestSnapshot: snap,
			ArchiveURL:      closest.URL,
		}, nil
	}
	return s.cdxFallback(ctx, target, timestamp)
}

// cdxFallback asks the capture index directly for one successful capture,
// sorted by closeness to the target timestamp. A plain lower-bound query
// would miss URLs whose captures all predate the timestamp.
func (s *Service) cdxFallback(ctx context.Context, target, timestamp string) (*AvailabilityResult, error) {
	query := wbclient.CDXQuery{
		URL:     stripProtocol(target),
		Filters: []string{"statuscode:200"},
		Limit:   1,
	}
	if timestamp != "" {
		query.Closest = timestamp
	}
	res, err := s.client.CDX(ctx, query)
	if err != nil {
		if errors.Is(err, wbclient.ErrNotArchived) {
			return nil, nil
		}
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	snap, err := rowToSnapshot(res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &AvailabilityResult{
		URL:             target,
		IsArchived:      true,
		ClosestSnapshot: snap,
		ArchiveURL:      snap.ArchiveURL(),
	}, nil
}

// BulkResult is one entry of a bulk availability response. Failed lookups
// carry their error inline; one bad URL never fails the batch.
type BulkResult struct {
	URL    string              `json:"url"`
	Result *AvailabilityResult `json:"result,omitempty"`
	Error  *ToolError          `json:"error,omitempty"`
}

// CheckBulkAvailability resolves up to 50 URLs sequentially, respecting the
// shared rate limiter.
func (s *Service) CheckBulkAvailability(ctx context.Context, targets []string, timestamp string) ([]BulkResult, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no URLs given", ErrInvalidInput)
	}
	if len(targets) > maxBulkURLs {
		return nil, fmt.Errorf("%w: %d URLs exceeds the limit of %d", ErrInvalidInput, len(targets), maxBulkURLs)
	}

	out := make([]BulkResult, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.CheckAvailability(ctx, target, timestamp, AvailabilityOptions{})
		if err != nil {
			out = append(out, BulkResult{URL: target, Error: classifyError(err)})
			continue
		}
		out = append(out, BulkResult{URL: target, Result: r})
	}
	return out, nil
}

// rowToSnapshot maps one CDX row in default field order.
func rowToSnapshot(row []string) (*Snapshot, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("%w: cdx row has %d fields", wbclient.ErrParse, len(row))
	}
	return &Snapshot{
		Timestamp:  row[0],
		URL:        row[1],
		MimeType:   row[2],
		StatusCode: row[3],
		Digest:     row[4],
		Length:     parseLength(row[5]),
	}, nil
}
