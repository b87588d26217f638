// CLAUDE:SUMMARY Change timeline: digest transitions between adjacent captures plus interval statistics.
package archiviste

import (
	"context"
	"fmt"
	"math"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// timelineCollapse maps the granularity to the CDX collapse window. Weekly
// reuses the daily index and is thinned client-side; CDX has no seven-day
// collapse expression.
var timelineCollapse = map[string]string{
	"daily":   "timestamp:8",
	"weekly":  "timestamp:8",
	"monthly": "timestamp:6",
}

// TimelineOptions bounds a changes timeline.
type TimelineOptions struct {
	From        string
	To          string
	Granularity string // daily | weekly | monthly. Default monthly.
}

// GetChangesTimeline walks the digest sequence of one URL's captures and
// reports every content transition with interval statistics.
func (s *Service) GetChangesTimeline(ctx context.Context, target string, opts TimelineOptions) (*TimelineResult, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}
	granularity := opts.Granularity
	if granularity == "" {
		granularity = "monthly"
	}
	collapse, ok := timelineCollapse[granularity]
	if !ok {
		return nil, fmt.Errorf("%w: granularity %q", ErrInvalidInput, granularity)
	}
	from := NormalizeTimestamp(opts.From)
	to := NormalizeTimestamp(opts.To)

	key := cache.Key("timeline", map[string]any{
		"url": target, "from": from, "to": to, "granularity": granularity,
	})
	var result TimelineResult
	err := s.cached(key, s.config.TTL.CDX, &result, func() error {
		res, err := s.client.CDX(ctx, wbclient.CDXQuery{
			URL:      stripProtocol(target),
			From:     from,
			To:       to,
			Collapse: collapse,
			Limit:    maxSnapshotLimit,
		})
		if err != nil {
			return err
		}
		snaps, err := rowsToSnapshots(res.Rows)
		if err != nil {
			return err
		}
		events := changeEvents(snaps)
		if granularity == "weekly" {
			events = thinWeekly(events)
		}
		result = buildTimeline(target, granularity, events)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// changeEvents walks the digest sequence of adjacent captures and emits one
// event per content transition.
func changeEvents(snaps []Snapshot) []ChangeEvent {
	events := make([]ChangeEvent, 0)
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		if cur.Digest == "" || cur.Digest == prev.Digest {
			continue
		}
		events = append(events, ChangeEvent{
			Timestamp:         cur.Timestamp,
			PreviousTimestamp: prev.Timestamp,
			DaysSincePrevious: daysBetween(prev.Timestamp, cur.Timestamp),
			DigestBefore:      prev.Digest,
			DigestAfter:       cur.Digest,
		})
	}
	return events
}

// thinWeekly keeps every seventh change event plus the final one, so a change
// seen in the last partial week is not lost. The full daily event sequence is
// derived first; thinning the capture list instead would distort the
// days-since-previous intervals.
func thinWeekly(events []ChangeEvent) []ChangeEvent {
	if len(events) < 2 {
		return events
	}
	out := make([]ChangeEvent, 0, len(events)/7+2)
	for i, e := range events {
		if i%7 == 0 {
			out = append(out, e)
		}
	}
	if last := events[len(events)-1]; out[len(out)-1].Timestamp != last.Timestamp {
		out = append(out, last)
	}
	return out
}

func buildTimeline(target, granularity string, events []ChangeEvent) TimelineResult {
	monthCounts := make(map[string]int)
	for _, e := range events {
		if len(e.Timestamp) >= 6 {
			monthCounts[e.Timestamp[:4]+"-"+e.Timestamp[4:6]]++
		}
	}
	return TimelineResult{
		URL:          target,
		Granularity:  granularity,
		TotalChanges: len(events),
		ChangeEvents: events,
		Summary:      summarize(events, monthCounts),
	}
}

// daysBetween is the capture gap in whole days, rounded up so same-day
// transitions still count as one.
func daysBetween(a, b string) int {
	ta, erra := timestampTime(a)
	tb, errb := timestampTime(b)
	if erra != nil || errb != nil {
		return 0
	}
	d := tb.Sub(ta)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

func summarize(events []ChangeEvent, monthCounts map[string]int) TimelineSummary {
	sum := TimelineSummary{ChangeFrequency: "rare"}
	if len(events) == 0 {
		return sum
	}

	total := 0
	for _, e := range events {
		total += e.DaysSincePrevious
	}
	avg := float64(total) / float64(len(events))
	sum.AverageIntervalDays = math.Round(avg*10) / 10
	sum.AverageInterval = formatInterval(avg)
	sum.ChangeFrequency = frequencyLabel(avg)

	best, bestCount := "", 0
	for month, c := range monthCounts {
		if c > bestCount || (c == bestCount && month < best) {
			best, bestCount = month, c
		}
	}
	sum.MostActiveMonth = best
	return sum
}

func formatInterval(days float64) string {
	switch {
	case days < 1:
		return "less than a day"
	case days < 7:
		return fmt.Sprintf("%.0f days", days)
	case days < 30:
		return fmt.Sprintf("%.1f weeks", days/7)
	case days < 365:
		return fmt.Sprintf("%.1f months", days/30)
	default:
		return fmt.Sprintf("%.1f years", days/365)
	}
}

func frequencyLabel(avgDays float64) string {
	switch {
	case avgDays < 7:
		return "very_frequent"
	case avgDays < 30:
		return "frequent"
	case avgDays < 90:
		return "moderate"
	case avgDays < 180:
		return "infrequent"
	default:
		return "rare"
	}
}
