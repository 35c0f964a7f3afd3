// Package rest exposes the CM360 service over HTTP. List endpoints
// mirror the MCP tools (one page plus cursor); export endpoints
// aggregate every page up to the service's bound.
package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/pkg/auth"
	"github.com/raydius/cm360-mcp/pkg/client"
	"github.com/raydius/cm360-mcp/pkg/cm360"
	"github.com/raydius/cm360-mcp/pkg/logging"
)

// Server is the REST façade over a CM360 service.
type Server struct {
	service *cm360.Service
	engine  *gin.Engine
	logger  zerolog.Logger
}

// New builds the router. gin runs in release mode; logging goes through
// zerolog, not gin's default writer.
func New(service *cm360.Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		service: service,
		logger:  logging.NewLogger("rest"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog(s.logger))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1/profiles/:profileID/:resource")
	v1.GET("", s.handleList)
	v1.GET("/export", s.handleExport)
	v1.GET("/:id", s.handleGet)
	v1.GET("/:id/files", s.handleReportFiles)

	s.engine = engine
	return s
}

// Handler returns the router for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleList(c *gin.Context) {
	scope, params, ok := s.bindListRequest(c)
	if !ok {
		return
	}

	resourceName := c.Param("resource")
	page, err := s.service.ListPage(c.Request.Context(), scope, resourceName, params, c.Query("pageToken"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	resource, err := cm360.Lookup(resourceName)
	if err != nil {
		s.writeError(c, err)
		return
	}

	body := gin.H{resource.ArrayField: page.Items}
	if page.NextCursor != "" {
		body["nextPageToken"] = page.NextCursor
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleExport(c *gin.Context) {
	scope, params, ok := s.bindListRequest(c)
	if !ok {
		return
	}

	items, err := s.service.ListAll(c.Request.Context(), scope, c.Param("resource"), params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleGet(c *gin.Context) {
	profileID, ok := s.pathInt64(c, "profileID")
	if !ok {
		return
	}
	id, ok := s.pathInt64(c, "id")
	if !ok {
		return
	}

	obj, err := s.service.Get(c.Request.Context(), cm360.Scope{ProfileID: profileID}, c.Param("resource"), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", obj)
}

// handleReportFiles serves the files sub-listing. Only reports have
// one; any other resource 404s.
func (s *Server) handleReportFiles(c *gin.Context) {
	if c.Param("resource") != "reports" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": gin.H{"reason": fmt.Sprintf("resource %q has no files listing", c.Param("resource"))},
		})
		return
	}

	profileID, ok := s.pathInt64(c, "profileID")
	if !ok {
		return
	}
	reportID, ok := s.pathInt64(c, "id")
	if !ok {
		return
	}

	maxResults := 0
	if raw := c.Query("maxResults"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.badRequest(c, "maxResults", "must be a number")
			return
		}
		maxResults = parsed
	}

	page, err := s.service.ReportFiles(c.Request.Context(), cm360.Scope{ProfileID: profileID}, reportID, maxResults, c.Query("pageToken"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	body := gin.H{"items": page.Items}
	if page.NextCursor != "" {
		body["nextPageToken"] = page.NextCursor
	}
	c.JSON(http.StatusOK, body)
}

// bindListRequest parses the path and query into a scope and listing
// parameters. On failure it writes a 400 and returns ok=false; deeper
// validation happens in the service.
func (s *Server) bindListRequest(c *gin.Context) (cm360.Scope, cm360.ListParams, bool) {
	profileID, ok := s.pathInt64(c, "profileID")
	if !ok {
		return cm360.Scope{}, cm360.ListParams{}, false
	}

	scope := cm360.Scope{ProfileID: profileID}
	if raw := c.Query("advertiserId"); raw != "" {
		advertiserID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.badRequest(c, "advertiserId", "must be a number")
			return cm360.Scope{}, cm360.ListParams{}, false
		}
		scope.AdvertiserID = advertiserID
	}

	params := cm360.ListParams{
		SearchString: c.Query("searchString"),
		SortField:    c.Query("sortField"),
		SortOrder:    c.Query("sortOrder"),
	}
	if raw := c.Query("maxResults"); raw != "" {
		maxResults, err := strconv.Atoi(raw)
		if err != nil {
			s.badRequest(c, "maxResults", "must be a number")
			return cm360.Scope{}, cm360.ListParams{}, false
		}
		params.MaxResults = maxResults
	}

	return scope, params, true
}

func (s *Server) pathInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		s.badRequest(c, name, "must be a number")
		return 0, false
	}
	return value, true
}

func (s *Server) badRequest(c *gin.Context, field, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": gin.H{"field": field, "reason": reason},
	})
}

// writeError maps core errors onto HTTP statuses. Upstream failures are
// gateway errors here regardless of the upstream status; the original
// status is echoed in the body for diagnosis.
func (s *Server) writeError(c *gin.Context, err error) {
	var ve *cm360.ValidationError
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"field": ve.Field, "reason": ve.Reason},
		})
		return
	}

	if errors.Is(err, cm360.ErrUnknownResource) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": gin.H{"reason": err.Error()},
		})
		return
	}

	var ae *auth.AuthError
	if errors.As(err, &ae) {
		s.logger.Error().Err(err).Msg("Upstream auth failure")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"reason": "upstream authentication failed"},
		})
		return
	}

	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		s.logger.Warn().
			Int("status", ue.StatusCode).
			Str("error_class", string(ue.Class)).
			Msg("Upstream failure")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"reason":          "upstream request failed",
				"upstream_status": ue.StatusCode,
				"class":           string(ue.Class),
			},
		})
		return
	}

	s.logger.Error().Err(err).Msg("Request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"reason": "internal error"},
	})
}
