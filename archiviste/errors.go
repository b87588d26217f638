// CLAUDE:SUMMARY Sentinel errors, the failure-code taxonomy, and the error-to-code mapping for the tool boundary.
package archiviste

import (
	"errors"
	"net/http"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// ErrInvalidInput is returned when a URL, timestamp, or parameter fails
// validation before any upstream call.
var ErrInvalidInput = errors.New("archiviste: invalid input")

// ErrNotArchived re-exports the client sentinel for callers of the service API.
var ErrNotArchived = wbclient.ErrNotArchived

// Failure codes surfaced at the tool boundary. Every error that crosses it is
// serialized as {code, message, details?}; none is allowed through opaque.
const (
	CodeNotArchived   = "not_archived"
	CodeRateLimited   = "rate_limited"
	CodeInvalidInput  = "invalid_input"
	CodeUpstreamError = "upstream_error"
	CodeParseError    = "parse_error"
	CodeNetworkError  = "network_error"
	CodeInternal      = "internal"
)

// ToolError is the serialized failure record.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// classifyError maps any service error to its boundary record.
func classifyError(err error) *ToolError {
	te := &ToolError{Message: err.Error()}

	var se *wbclient.StatusError
	switch {
	case errors.Is(err, wbclient.ErrNotArchived):
		te.Code = CodeNotArchived
	case errors.Is(err, ErrInvalidInput):
		te.Code = CodeInvalidInput
	case errors.As(err, &se):
		if se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable {
			te.Code = CodeRateLimited
		} else {
			te.Code = CodeUpstreamError
		}
		te.Details = map[string]any{"status": se.Code}
	case errors.Is(err, wbclient.ErrParse):
		te.Code = CodeParseError
	case errors.Is(err, cache.ErrNotInitialized):
		te.Code = CodeInternal
	default:
		te.Code = CodeNetworkError
	}
	return te
}
