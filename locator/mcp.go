package locator

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domlocator/kit"
)

// RegisterMCP registers the locator tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	source := map[string]any{
		"html": map[string]any{"type": "string", "description": "Inline HTML document (declarative shadow DOM supported)"},
		"url":  map[string]any{"type": "string", "description": "Page URL, captured in a browser"},
	}
	with := func(extra map[string]any) map[string]any {
		props := make(map[string]any, len(source)+len(extra))
		for k, v := range source {
			props[k] = v
		}
		for k, v := range extra {
			props[k] = v
		}
		return props
	}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "locator_query",
		Description: "Resolve a compound selector (parts joined by >>, e.g. css=form >> text=\"Save\") and describe the matched elements.",
		InputSchema: inputSchema(with(map[string]any{
			"selector": map[string]any{"type": "string", "description": "Compound selector"},
			"all":      map[string]any{"type": "boolean", "description": "Return every match instead of the first"},
		}), []string{"selector"}),
	}, s.query, kit.DecodeArgs[QueryRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "locator_create",
		Description: "Synthesize selectors that uniquely identify the element matched by target.",
		InputSchema: inputSchema(with(map[string]any{
			"target": map[string]any{"type": "string", "description": "Compound selector locating the element"},
			"engine": map[string]any{"type": "string", "description": "Engine name (default zs, * for all engines)"},
			"mode":   map[string]any{"type": "string", "enum": []string{"default", "notext"}},
		}), []string{"target"}),
	}, s.create, kit.DecodeArgs[CreateRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "locator_wait",
		Description: "Poll until a selector is attached, detached, visible or hidden.",
		InputSchema: inputSchema(with(map[string]any{
			"selector": map[string]any{"type": "string", "description": "Compound selector"},
			"state":    map[string]any{"type": "string", "enum": []string{"attached", "detached", "visible", "hidden"}},
		}), []string{"selector"}),
	}, s.wait, kit.DecodeArgs[WaitRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "locator_engines",
		Description: "List the registered selector engines.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.engines, kit.DecodeArgs[struct{}])
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
