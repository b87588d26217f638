// CLAUDE:SUMMARY Capture listings and closest-capture search over the CDX index.
package archiviste

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// maxSnapshotLimit caps one capture listing.
const maxSnapshotLimit = 10000

// collapseParam maps the listing granularity to a CDX collapse expression.
// Timestamp-prefix collapse keeps one capture per day/month/year; digest
// collapse keeps one capture per distinct content version.
var collapseParam = map[string]string{
	"":        "",
	"none":    "",
	"daily":   "timestamp:8",
	"monthly": "timestamp:6",
	"yearly":  "timestamp:4",
	"digest":  "digest",
}

// ListOptions filters a capture listing.
type ListOptions struct {
	From     string // accepted timestamp forms, see NormalizeTimestamp
	To       string
	Limit    int    // default 1000, capped at 10000
	Collapse string // none | daily | monthly | yearly | digest
	// StatusFilter keeps captures with one HTTP status. Default "200";
	// "any" disables the filter.
	StatusFilter string
}

// statusFilterParam resolves the status-filter convention shared by the
// listing and site-discovery queries.
func statusFilterParam(filter string) []string {
	switch filter {
	case "":
		return []string{"statuscode:200"}
	case "any":
		return nil
	default:
		return []string{"statuscode:" + filter}
	}
}

// ListSnapshots returns the captures of one URL, oldest first.
func (s *Service) ListSnapshots(ctx context.Context, target string, opts ListOptions) (*SnapshotList, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}
	collapse, ok := collapseParam[opts.Collapse]
	if !ok {
		return nil, fmt.Errorf("%w: collapse %q", ErrInvalidInput, opts.Collapse)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}
	from := NormalizeTimestamp(opts.From)
	to := NormalizeTimestamp(opts.To)

	key := cache.Key("snapshots", map[string]any{
		"url": target, "from": from, "to": to,
		"limit": limit, "collapse": opts.Collapse, "status": opts.StatusFilter,
	})
	var list SnapshotList
	err := s.cached(key, s.config.TTL.Snapshots, &list, func() error {
		res, err := s.client.CDX(ctx, wbclient.CDXQuery{
			URL:      stripProtocol(target),
			From:     from,
			To:       to,
			Filters:  statusFilterParam(opts.StatusFilter),
			Collapse: collapse,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		snaps, err := rowsToSnapshots(res.Rows)
		if err != nil {
			return err
		}
		list = SnapshotList{
			URL:            target,
			TotalSnapshots: len(snaps),
			Snapshots:      snaps,
		}
		if len(snaps) > 0 {
			list.DateRange = DateRange{
				First: snaps[0].Timestamp,
				Last:  snaps[len(snaps)-1].Timestamp,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// FindClosestSnapshot returns the capture nearest to timestamp. The same
// calendar day is searched first at full resolution; when the day is empty
// the search widens to the calendar year at monthly granularity.
func (s *Service) FindClosestSnapshot(ctx context.Context, target, timestamp string) (*Snapshot, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}
	ts := NormalizeTimestamp(timestamp)
	if len(ts) != 14 || !isDigits(ts) {
		return nil, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, timestamp)
	}

	key := cache.Key("closest", map[string]any{"url": target, "timestamp": ts})
	var snap Snapshot
	err := s.cached(key, s.config.TTL.Snapshots, &snap, func() error {
		day := ts[:8]
		found, err := s.closestIn(ctx, target, ts, day+"000000", day+"235959", "")
		if err != nil {
			return err
		}
		if found == nil {
			year := ts[:4]
			found, err = s.closestIn(ctx, target, ts, year+"0101000000", year+"1231235959", "timestamp:6")
			if err != nil {
				return err
			}
		}
		if found == nil {
			return fmt.Errorf("%w: %s near %s", wbclient.ErrNotArchived, target, ts)
		}
		snap = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// closestIn picks the capture with minimum numeric timestamp distance within
// [from, to]. Returns nil when the window holds no captures.
func (s *Service) closestIn(ctx context.Context, target, ts, from, to, collapse string) (*Snapshot, error) {
	res, err := s.client.CDX(ctx, wbclient.CDXQuery{
		URL:      stripProtocol(target),
		From:     from,
		To:       to,
		Collapse: collapse,
		Limit:    maxSnapshotLimit,
	})
	if err != nil {
		return nil, err
	}
	snaps, err := rowsToSnapshots(res.Rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	want, _ := strconv.ParseInt(ts, 10, 64)
	best := snaps[0]
	bestDist := int64(-1)
	for _, sn := range snaps {
		got, err := strconv.ParseInt(sn.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		dist := want - got
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = sn, dist
		}
	}
	return &best, nil
}

func rowsToSnapshots(rows [][]string) ([]Snapshot, error) {
	snaps := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		sn, err := rowToSnapshot(row)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *sn)
	}
	return snaps, nil
}

func parseLength(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
