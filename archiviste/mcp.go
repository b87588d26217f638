// CLAUDE:SUMMARY Registers all archiviste MCP tools: availability, snapshots, content, comparison, site discovery, cache admin.
package archiviste

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/archiviste/kit"
)

// RegisterMCP registers archiviste tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCheckAvailabilityTool(srv)
	s.registerBulkAvailabilityTool(srv)
	s.registerListSnapshotsTool(srv)
	s.registerClosestSnapshotTool(srv)
	s.registerGetContentTool(srv)
	s.registerCompareSnapshotsTool(srv)
	s.registerSEOChangesTool(srv)
	s.registerSiteURLsTool(srv)
	s.registerChangesTimelineTool(srv)
	s.registerCacheStatsTool(srv)
	s.registerCacheClearTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// errorEnvelope is the failure body every tool returns. Callers always get
// JSON content, never a protocol-level fault.
type errorEnvelope struct {
	Error *ToolError `json:"error"`
}

func (s *Service) encodeToolError(err error) any {
	return errorEnvelope{Error: classifyError(err)}
}

// register wires one endpoint with audit and logging middleware.
func (s *Service) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	wrapped := s.auditMW(tool.Name)(endpoint)
	kit.RegisterMCPTool(srv, tool, wrapped, decode, s.encodeToolError)
}

func (s *Service) auditMW(toolName string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			code := ""
			if err != nil {
				code = classifyError(err).Code
				s.logger.Warn("tool call failed", "tool", toolName, "duration_ms", elapsed.Milliseconds(), "code", code)
			} else {
				s.logger.Debug("tool call", "tool", toolName, "duration_ms", elapsed.Milliseconds())
			}
			if s.audit != nil {
				s.audit.Record(ctx, toolName, elapsed.Milliseconds(), code)
			}
			return resp, err
		}
	}
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// Shared schema fragments.
var (
	urlProp       = map[string]any{"type": "string", "description": "Target URL (scheme optional)"}
	timestampProp = map[string]any{"type": "string", "description": "Timestamp: 14-digit YYYYMMDDhhmmss, partial digits, or YYYY-MM-DD"}
)

// --- check_availability ---

type availabilityRequest struct {
	URL             string `json:"url"`
	Timestamp       string `json:"timestamp,omitempty"`
	CheckWWWVariant *bool  `json:"check_www_variant,omitempty"`
}

func (s *Service) registerCheckAvailabilityTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_check_availability",
		Description: "Check whether a URL is archived in the Wayback Machine and return its closest capture.",
		InputSchema: inputSchema(map[string]any{
			"url":               urlProp,
			"timestamp":         timestampProp,
			"check_www_variant": map[string]any{"type": "boolean", "description": "Retry with the www/non-www form on a miss (default true)"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*availabilityRequest)
		opts := AvailabilityOptions{
			SkipWWWVariant: r.CheckWWWVariant != nil && !*r.CheckWWWVariant,
		}
		return s.CheckAvailability(ctx, r.URL, r.Timestamp, opts)
	}

	s.register(srv, tool, endpoint, decodeInto[availabilityRequest])
}

// --- bulk_availability ---

type bulkAvailabilityRequest struct {
	URLs      []string `json:"urls"`
	Timestamp string   `json:"timestamp,omitempty"`
}

func (s *Service) registerBulkAvailabilityTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_bulk_availability",
		Description: "Check availability for up to 50 URLs. Per-URL failures are reported inline.",
		InputSchema: inputSchema(map[string]any{
			"urls":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "URLs to check (max 50)"},
			"timestamp": timestampProp,
		}, []string{"urls"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*bulkAvailabilityRequest)
		results, err := s.CheckBulkAvailability(ctx, r.URLs, r.Timestamp)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}

	s.register(srv, tool, endpoint, decodeInto[bulkAvailabilityRequest])
}

// --- list_snapshots ---

type listSnapshotsRequest struct {
	URL          string `json:"url"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Collapse     string `json:"collapse,omitempty"`
	StatusFilter string `json:"status_filter,omitempty"`
}

func (s *Service) registerListSnapshotsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_list_snapshots",
		Description: "List the archived captures of a URL, oldest first, optionally collapsed per day/month/year or per content version.",
		InputSchema: inputSchema(map[string]any{
			"url":      urlProp,
			"from":     timestampProp,
			"to":       timestampProp,
			"limit":         map[string]any{"type": "integer", "description": "Max captures (default 1000, cap 10000)"},
			"collapse":      map[string]any{"type": "string", "enum": []any{"none", "daily", "monthly", "yearly", "digest"}, "description": "Collapse granularity"},
			"status_filter": map[string]any{"type": "string", "description": "HTTP status to keep (default 200, \"any\" disables)"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listSnapshotsRequest)
		return s.ListSnapshots(ctx, r.URL, ListOptions{
			From: r.From, To: r.To, Limit: r.Limit, Collapse: r.Collapse,
			StatusFilter: r.StatusFilter,
		})
	}

	s.register(srv, tool, endpoint, decodeInto[listSnapshotsRequest])
}

// --- closest_snapshot ---

type closestSnapshotRequest struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

func (s *Service) registerClosestSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_closest_snapshot",
		Description: "Find the capture of a URL nearest to a timestamp, widening from the same day to the calendar year.",
		InputSchema: inputSchema(map[string]any{
			"url":       urlProp,
			"timestamp": timestampProp,
		}, []string{"url", "timestamp"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*closestSnapshotRequest)
		return s.FindClosestSnapshot(ctx, r.URL, r.Timestamp)
	}

	s.register(srv, tool, endpoint, decodeInto[closestSnapshotRequest])
}

// --- get_content ---

type getContentRequest struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Format    string `json:"format,omitempty"`
	Banner    bool   `json:"banner,omitempty"`
}

func (s *Service) registerGetContentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_get_content",
		Description: "Fetch an archived capture and render it as sanitized HTML, plain text, markdown, or a metadata record.",
		InputSchema: inputSchema(map[string]any{
			"url":       urlProp,
			"timestamp": timestampProp,
			"format":    map[string]any{"type": "string", "enum": []any{"html", "text", "markdown", "metadata"}, "description": "Output format (default html)"},
			"banner":    map[string]any{"type": "boolean", "description": "Keep the archive replay banner (default false)"},
		}, []string{"url", "timestamp"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getContentRequest)
		return s.GetContent(ctx, r.URL, r.Timestamp, ContentOptions{Format: r.Format, Banner: r.Banner})
	}

	s.register(srv, tool, endpoint, decodeInto[getContentRequest])
}

// --- compare_snapshots ---

type compareRequest struct {
	URL        string `json:"url"`
	Timestamp1 string `json:"timestamp1"`
	Timestamp2 string `json:"timestamp2"`
}

func (s *Service) registerCompareSnapshotsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_compare_snapshots",
		Description: "Diff the page metadata of two captures of one URL field by field.",
		InputSchema: inputSchema(map[string]any{
			"url":        urlProp,
			"timestamp1": timestampProp,
			"timestamp2": timestampProp,
		}, []string{"url", "timestamp1", "timestamp2"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*compareRequest)
		return s.CompareSnapshots(ctx, r.URL, r.Timestamp1, r.Timestamp2)
	}

	s.register(srv, tool, endpoint, decodeInto[compareRequest])
}

// --- seo_changes ---

func (s *Service) registerSEOChangesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_seo_changes",
		Description: "Score the SEO impact of the differences between two captures of one URL.",
		InputSchema: inputSchema(map[string]any{
			"url":        urlProp,
			"timestamp1": timestampProp,
			"timestamp2": timestampProp,
		}, []string{"url", "timestamp1", "timestamp2"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*compareRequest)
		return s.AnalyzeSEOChanges(ctx, r.URL, r.Timestamp1, r.Timestamp2)
	}

	s.register(srv, tool, endpoint, decodeInto[compareRequest])
}

// --- site_urls ---

type siteURLsRequest struct {
	Domain            string `json:"domain"`
	From              string `json:"from,omitempty"`
	To                string `json:"to,omitempty"`
	StatusFilter      string `json:"status_filter,omitempty"`
	MimeFilter        string `json:"mime_filter,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	MatchType         string `json:"match_type,omitempty"`
	IncludeSubdomains *bool  `json:"include_subdomains,omitempty"`
	Subdomain         string `json:"subdomain,omitempty"`
	SortBy            string `json:"sort_by,omitempty"`
	IncludeCounts     bool   `json:"include_counts,omitempty"`
}

func (s *Service) registerSiteURLsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_site_urls",
		Description: "Discover the archived URLs of a whole site with subdomain, path, and MIME breakdowns.",
		InputSchema: inputSchema(map[string]any{
			"domain":             map[string]any{"type": "string", "description": "Site domain, e.g. example.com"},
			"from":               timestampProp,
			"to":                 timestampProp,
			"status_filter":      map[string]any{"type": "string", "description": "HTTP status to keep (default 200, \"any\" disables)"},
			"mime_filter":        map[string]any{"type": "string", "description": "MIME type to keep, e.g. text/html"},
			"limit":              map[string]any{"type": "integer", "description": "Distinct URLs returned (default 1000, cap 10000)"},
			"match_type":         map[string]any{"type": "string", "enum": []any{"domain", "prefix", "host", "exact"}, "description": "Index match scope (default domain)"},
			"include_subdomains": map[string]any{"type": "boolean", "description": "Cover subdomains in a domain query (default true)"},
			"subdomain":          map[string]any{"type": "string", "description": "Keep only URLs under this subdomain"},
			"sort_by":            map[string]any{"type": "string", "enum": []any{"oldest", "newest", "captures"}, "description": "URL ordering (default captures with counts, oldest otherwise)"},
			"include_counts":     map[string]any{"type": "boolean", "description": "Aggregate per-URL capture counts"},
		}, []string{"domain"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*siteURLsRequest)
		return s.GetSiteURLs(ctx, r.Domain, SiteURLsOptions{
			From: r.From, To: r.To,
			StatusFilter: r.StatusFilter, MimeFilter: r.MimeFilter,
			Limit: r.Limit, MatchType: r.MatchType,
			IncludeSubdomains: r.IncludeSubdomains, Subdomain: r.Subdomain,
			SortBy: r.SortBy, IncludeCounts: r.IncludeCounts,
		})
	}

	s.register(srv, tool, endpoint, decodeInto[siteURLsRequest])
}

// --- changes_timeline ---

type timelineRequest struct {
	URL         string `json:"url"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Granularity string `json:"granularity,omitempty"`
}

func (s *Service) registerChangesTimelineTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_changes_timeline",
		Description: "Build a timeline of content changes for a URL from capture digests, with interval statistics.",
		InputSchema: inputSchema(map[string]any{
			"url":         urlProp,
			"from":        timestampProp,
			"to":          timestampProp,
			"granularity": map[string]any{"type": "string", "enum": []any{"daily", "weekly", "monthly"}, "description": "Sampling granularity (default monthly)"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*timelineRequest)
		return s.GetChangesTimeline(ctx, r.URL, TimelineOptions{
			From: r.From, To: r.To, Granularity: r.Granularity,
		})
	}

	s.register(srv, tool, endpoint, decodeInto[timelineRequest])
}

// --- cache admin ---

type emptyRequest struct{}

func (s *Service) registerCacheStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_cache_stats",
		Description: "Report the persisted response cache's location and entry count.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.GetCacheStats(ctx)
	}

	s.register(srv, tool, endpoint, decodeInto[emptyRequest])
}

func (s *Service) registerCacheClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiviste_cache_clear",
		Description: "Drop every cached response and persist the empty store.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.ClearCache(ctx)
	}

	s.register(srv, tool, endpoint, decodeInto[emptyRequest])
}
