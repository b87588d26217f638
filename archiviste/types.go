// CLAUDE:SUMMARY Public result records: snapshots, availability, site URLs, change events, comparisons.
package archiviste

import "github.com/hazyhaar/archiviste/archiviste/internal/meta"

// Snapshot is one archived capture. Immutable once produced; the digest is a
// content-identity value used for change detection, not verified.
type Snapshot struct {
	Timestamp  string `json:"timestamp"` // 14-digit YYYYMMDDhhmmss
	URL        string `json:"url"`
	MimeType   string `json:"mime_type"`
	StatusCode string `json:"status_code"` // kept as sent: revisit rows carry "-"
	Digest     string `json:"digest"`
	Length     int64  `json:"length"`
}

// ArchiveURL returns the public replay address for the capture.
func (s Snapshot) ArchiveURL() string {
	return "https://web.archive.org/web/" + s.Timestamp + "/" + s.URL
}

// AvailabilityResult answers "is this URL archived".
type AvailabilityResult struct {
	URL             string    `json:"url"`
	IsArchived      bool      `json:"is_archived"`
	ClosestSnapshot *Snapshot `json:"closest_snapshot,omitempty"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	// CheckedVariant is set when the www/non-www alternate of the requested
	// URL is the one actually found.
	CheckedVariant string `json:"checked_variant,omitempty"`
}

// DateRange bounds a capture listing.
type DateRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// SnapshotList is a capture listing for one URL.
type SnapshotList struct {
	URL            string     `json:"url"`
	TotalSnapshots int        `json:"total_snapshots"`
	DateRange      DateRange  `json:"date_range"`
	Snapshots      []Snapshot `json:"snapshots"`
}

// SiteURL aggregates the captures sharing one original URL.
type SiteURL struct {
	URL          string `json:"url"`
	FirstCapture string `json:"first_capture"`
	LastCapture  string `json:"last_capture"`
	CaptureCount int    `json:"capture_count"`
	StatusCode   string `json:"status_code"`
	MimeType     string `json:"mime_type"`
}

// NameCount is one ordered histogram bucket.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SiteURLsResult is a site-wide URL discovery report.
type SiteURLsResult struct {
	Domain        string      `json:"domain"`
	TotalURLs     int         `json:"total_urls"`
	TotalCaptures int         `json:"total_captures"`
	URLs          []SiteURL   `json:"urls"`
	Subdomains    []string    `json:"subdomains,omitempty"`
	PathStructure []NameCount `json:"path_structure"`
	MimeTypes     []NameCount `json:"mime_types"`
	Truncated     bool        `json:"truncated"`
	ResumeKey     string      `json:"resume_key,omitempty"`
}

// ChangeEvent marks a digest transition between two adjacent captures.
type ChangeEvent struct {
	Timestamp         string `json:"timestamp"`
	PreviousTimestamp string `json:"previous_timestamp"`
	DaysSincePrevious int    `json:"days_since_previous"`
	DigestBefore      string `json:"digest_before"`
	DigestAfter       string `json:"digest_after"`
}

// TimelineSummary aggregates a change-event sequence.
type TimelineSummary struct {
	AverageIntervalDays float64 `json:"average_interval_days"`
	AverageInterval     string  `json:"average_interval"`
	MostActiveMonth     string  `json:"most_active_month,omitempty"` // YYYY-MM
	ChangeFrequency     string  `json:"change_frequency"`
}

// TimelineResult is a change-event sequence with summary statistics.
type TimelineResult struct {
	URL          string          `json:"url"`
	Granularity  string          `json:"granularity"`
	TotalChanges int             `json:"total_changes"`
	ChangeEvents []ChangeEvent   `json:"change_events"`
	Summary      TimelineSummary `json:"summary"`
}

// ContentResult is one fetched capture, rendered in the requested format.
type ContentResult struct {
	URL                string       `json:"url"`
	Timestamp          string       `json:"timestamp"`
	ResolvedTimestamp  string       `json:"resolved_timestamp"`
	Format             string       `json:"format"`
	Content            string       `json:"content,omitempty"`
	Metadata           *meta.Record `json:"metadata,omitempty"`
	ContentType        string       `json:"content_type,omitempty"`
	ByteCount          int          `json:"byte_count"`
	// Note explains when the archive served a different capture than requested.
	Note string `json:"note,omitempty"`
}

// FieldChange is one before/after pair in a comparison.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// CompareResult is a metadata diff between two captures of one URL.
type CompareResult struct {
	URL        string                 `json:"url"`
	Timestamp1 string                 `json:"timestamp1"`
	Timestamp2 string                 `json:"timestamp2"`
	HasChanges bool                   `json:"has_changes"`
	Changes    map[string]FieldChange `json:"changes"`
	Before     *meta.Record           `json:"before,omitempty"`
	After      *meta.Record           `json:"after,omitempty"`
}

// Deduction is one scored finding in an SEO change report.
type Deduction struct {
	Field  string `json:"field"`
	Points int    `json:"points"`
	Note   string `json:"note"`
}

// SEOResult scores the SEO impact of changes between two captures.
type SEOResult struct {
	URL             string      `json:"url"`
	Timestamp1      string      `json:"timestamp1"`
	Timestamp2      string      `json:"timestamp2"`
	Score           int         `json:"score"` // 100 minus deductions, floor 0
	Severity        string      `json:"severity"`
	HasChanges      bool        `json:"has_changes"`
	Deductions      []Deduction `json:"deductions"`
	Recommendations []string    `json:"recommendations"`
}

// CacheStats reports cache state for the admin tools.
type CacheStats struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}
