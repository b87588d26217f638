// CLAUDE:SUMMARY MCP transport: registers endpoints as tools, failures serialized into the result body.
package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// ErrorEncoder turns an endpoint error into the serializable error envelope.
// Tool callers always receive a JSON body; operational failures never surface
// as protocol-level faults.
type ErrorEncoder func(error) any

// RegisterMCPTool registers an Endpoint as an MCP tool on the given server.
// decode extracts the typed request from req.Params.Arguments; encodeErr maps
// decode and endpoint errors to the body envelope.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode func(*mcp.CallToolRequest) (*MCPDecodeResult, error), encodeErr ErrorEncoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTool(ctx, tool.Name)

		decoded, err := decode(req)
		if err != nil {
			return textResult(encodeErr(fmt.Errorf("invalid arguments: %w", err)))
		}
		if decoded.EnrichCtx != nil {
			ctx = decoded.EnrichCtx(ctx)
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			return textResult(encodeErr(err))
		}
		return textResult(resp)
	})
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
