// CLAUDE:SUMMARY Archived content fetch with html/text/markdown/metadata rendering.
package archiviste

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/meta"
)

// ContentOptions selects the rendering of a fetched capture.
type ContentOptions struct {
	// Format: html | text | markdown | metadata. Default html.
	Format string
	// Banner keeps the archive's replay banner in the fetched page. Off by
	// default: the raw capture is what callers want for analysis.
	Banner bool
}

func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// GetContent fetches one archived capture and renders it in the requested
// format. The archive serves the closest capture when the exact one is gone;
// the result notes when that happened.
func (s *Service) GetContent(ctx context.Context, target, timestamp string, opts ContentOptions) (*ContentResult, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}
	ts := NormalizeTimestamp(timestamp)
	if len(ts) != 14 || !isDigits(ts) {
		return nil, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, timestamp)
	}
	format := opts.Format
	if format == "" {
		format = "html"
	}
	switch format {
	case "html", "text", "markdown", "metadata":
	default:
		return nil, fmt.Errorf("%w: format %q", ErrInvalidInput, format)
	}

	key := cache.Key("content", map[string]any{
		"url": target, "timestamp": ts, "format": format, "banner": opts.Banner,
	})
	var result ContentResult
	err := s.cached(key, s.config.TTL.Content, &result, func() error {
		snap, err := s.client.Snapshot(ctx, target, ts, !opts.Banner)
		if err != nil {
			return err
		}

		result = ContentResult{
			URL:               target,
			Timestamp:         ts,
			ResolvedTimestamp: snap.ResolvedTimestamp,
			Format:            format,
			ContentType:       snap.ContentType,
			ByteCount:         len(snap.Body),
		}
		if snap.Redirected() {
			result.Note = fmt.Sprintf("requested capture %s unavailable, archive served %s", ts, snap.ResolvedTimestamp)
		}

		switch format {
		case "html":
			result.Content = string(bluemonday.UGCPolicy().SanitizeBytes(snap.Body))
		case "text":
			text, err := meta.Text(snap.Body)
			if err != nil {
				return err
			}
			result.Content = text
		case "markdown":
			md, err := newMarkdownConverter().ConvertString(string(snap.Body), converter.WithDomain(target))
			if err != nil || strings.TrimSpace(md) == "" {
				// Unconvertible markup degrades to plain text.
				md, _ = meta.Text(snap.Body)
			}
			result.Content = strings.TrimSpace(md)
		case "metadata":
			rec, err := meta.Parse(snap.Body)
			if err != nil {
				return err
			}
			result.Metadata = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
