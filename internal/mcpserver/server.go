// Package mcpserver exposes the CM360 service as an MCP server: one
// listing tool per catalog resource, get tools for single objects, and
// resource templates for first-page reads.
//
// Tools return a single page plus the continuation cursor so that
// tool-call payloads stay bounded; callers page explicitly by passing
// page_token back in.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/pkg/auth"
	"github.com/raydius/cm360-mcp/pkg/client"
	"github.com/raydius/cm360-mcp/pkg/cm360"
	"github.com/raydius/cm360-mcp/pkg/logging"
)

// ServerName identifies this MCP server to clients.
const ServerName = "cm360-mcp"

// toolSuffixes maps catalog resource names to tool-name suffixes.
var toolSuffixes = map[string]string{
	"accounts":    "accounts",
	"advertisers": "advertisers",
	"campaigns":   "campaigns",
	"creatives":   "creatives",
	"placements":  "placements",
	"sites":       "sites",
	"eventTags":   "event_tags",
	"reports":     "reports",
}

// getTools are the resources that additionally expose a single-object
// get tool.
var getTools = []string{"accounts", "campaigns", "reports"}

// Server wires the CM360 service into an MCP server.
type Server struct {
	service *cm360.Service
	mcp     *server.MCPServer
	logger  zerolog.Logger
}

// New creates the MCP server and registers all tools and resources.
func New(service *cm360.Service, version string) *Server {
	s := &Server{
		service: service,
		logger:  logging.NewLogger("mcpserver"),
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, true),
		server.WithInstructions("Read-mostly access to Campaign Manager 360: accounts, advertisers, campaigns, creatives, placements, sites, event tags, and reports. Listing tools return one page plus nextPageToken; pass it back as page_token to continue."),
	)

	s.registerListTools()
	s.registerGetTools()
	s.registerReportFilesTool()
	s.registerResources()

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info().Str("server", ServerName).Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server (for transport wiring and tests).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerListTools() {
	for _, name := range cm360.ResourceNames() {
		resource, err := cm360.Lookup(name)
		if err != nil {
			continue
		}

		tool := mcp.NewTool("list_"+toolSuffixes[name],
			mcp.WithDescription(fmt.Sprintf("List CM360 %s for a user profile. Returns one page of results plus nextPageToken when more pages exist.", name)),
			mcp.WithNumber("profile_id",
				mcp.Required(),
				mcp.Description("CM360 user profile ID the request acts as"),
			),
			mcp.WithString("search_string",
				mcp.Description("Restrict results to objects whose names match this pattern"),
			),
			mcp.WithNumber("advertiser_id",
				mcp.Description("Restrict results to one advertiser (honored where the listing supports it)"),
			),
			mcp.WithString("sort_field",
				mcp.Description("Sort by ID or NAME"),
			),
			mcp.WithString("sort_order",
				mcp.Description("ASCENDING or DESCENDING"),
			),
			mcp.WithNumber("max_results",
				mcp.Description("Page size, up to 1000"),
			),
			mcp.WithString("page_token",
				mcp.Description("Continuation token from a previous page"),
			),
		)

		s.mcp.AddTool(tool, s.listHandler(resource))
	}
}

func (s *Server) listHandler(resource cm360.Resource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		profileID, err := argInt64(args, "profile_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		advertiserID, _ := argInt64(args, "advertiser_id")
		maxResults, _ := argInt64(args, "max_results")

		scope := cm360.Scope{ProfileID: profileID, AdvertiserID: advertiserID}
		params := cm360.ListParams{
			SearchString: argString(args, "search_string"),
			SortField:    argString(args, "sort_field"),
			SortOrder:    argString(args, "sort_order"),
			MaxResults:   int(maxResults),
		}
		cursor := argString(args, "page_token")

		page, err := s.service.ListPage(ctx, scope, resource.Name, params, cursor)
		if err != nil {
			return s.errorResult(err), nil
		}

		envelope := map[string]any{resource.ArrayField: page.Items}
		if page.NextCursor != "" {
			envelope["nextPageToken"] = page.NextCursor
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func (s *Server) registerGetTools() {
	for _, name := range getTools {
		resource, err := cm360.Lookup(name)
		if err != nil {
			continue
		}

		suffix := toolSuffixes[name]
		singular := suffix[:len(suffix)-1]

		tool := mcp.NewTool("get_"+singular,
			mcp.WithDescription(fmt.Sprintf("Fetch a single CM360 %s by ID.", singular)),
			mcp.WithNumber("profile_id",
				mcp.Required(),
				mcp.Description("CM360 user profile ID the request acts as"),
			),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Object ID"),
			),
		)

		s.mcp.AddTool(tool, s.getHandler(resource))
	}
}

func (s *Server) getHandler(resource cm360.Resource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		profileID, err := argInt64(args, "profile_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, err := argInt64(args, "id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		obj, err := s.service.Get(ctx, cm360.Scope{ProfileID: profileID}, resource.Name, id)
		if err != nil {
			return s.errorResult(err), nil
		}
		return mcp.NewToolResultText(string(obj)), nil
	}
}

func (s *Server) registerReportFilesTool() {
	tool := mcp.NewTool("list_report_files",
		mcp.WithDescription("List the files generated for a CM360 report. Returns one page of results plus nextPageToken when more pages exist."),
		mcp.WithNumber("profile_id",
			mcp.Required(),
			mcp.Description("CM360 user profile ID the request acts as"),
		),
		mcp.WithNumber("report_id",
			mcp.Required(),
			mcp.Description("Report whose files to list"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Page size, up to 1000"),
		),
		mcp.WithString("page_token",
			mcp.Description("Continuation token from a previous page"),
		),
	)

	s.mcp.AddTool(tool, s.reportFilesHandler())
}

func (s *Server) reportFilesHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		profileID, err := argInt64(args, "profile_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reportID, err := argInt64(args, "report_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		maxResults, _ := argInt64(args, "max_results")

		page, err := s.service.ReportFiles(ctx, cm360.Scope{ProfileID: profileID}, reportID, int(maxResults), argString(args, "page_token"))
		if err != nil {
			return s.errorResult(err), nil
		}

		envelope := map[string]any{"items": page.Items}
		if page.NextCursor != "" {
			envelope["nextPageToken"] = page.NextCursor
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func (s *Server) registerResources() {
	template := mcp.NewResourceTemplate(
		"cm360://profiles/{profileID}/{resource}",
		"CM360 listings",
		mcp.WithTemplateDescription("First page of a CM360 resource listing for a user profile"),
		mcp.WithTemplateMIMEType("application/json"),
	)

	s.mcp.AddResourceTemplate(template, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return s.readResource(ctx, req.Params.URI)
	})
}

func (s *Server) readResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	profileID, resourceName, err := parseResourceURI(uri)
	if err != nil {
		return nil, err
	}

	resource, err := cm360.Lookup(resourceName)
	if err != nil {
		return nil, err
	}

	page, err := s.service.ListPage(ctx, cm360.Scope{ProfileID: profileID}, resourceName, cm360.ListParams{}, "")
	if err != nil {
		return nil, err
	}

	envelope := map[string]any{resource.ArrayField: page.Items}
	if page.NextCursor != "" {
		envelope["nextPageToken"] = page.NextCursor
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		},
	}, nil
}

// errorResult translates core errors into tool-call error payloads.
// The façade only formats; nothing is swallowed or retried here.
func (s *Server) errorResult(err error) *mcp.CallToolResult {
	var ve *cm360.ValidationError
	if errors.As(err, &ve) {
		return mcp.NewToolResultError("invalid parameters: " + ve.Error())
	}

	var ae *auth.AuthError
	if errors.As(err, &ae) {
		s.logger.Error().Err(err).Msg("Auth failure during tool call")
		return mcp.NewToolResultError("authentication failed: " + ae.Error())
	}

	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		s.logger.Warn().Int("status", ue.StatusCode).Str("error_class", string(ue.Class)).Msg("Upstream failure during tool call")
		return mcp.NewToolResultError(fmt.Sprintf("upstream %s error (status %d)", ue.Class, ue.StatusCode))
	}

	if errors.Is(err, cm360.ErrUnknownResource) {
		return mcp.NewToolResultError(err.Error())
	}

	s.logger.Error().Err(err).Msg("Tool call failed")
	return mcp.NewToolResultError(err.Error())
}
