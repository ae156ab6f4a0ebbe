package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pvasseur/streamsync/internal/enrichment"
	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/store"
	"github.com/pvasseur/streamsync/internal/syncer"
)

func (s *Server) healthCheck(c *gin.Context) {
	if s.healthFunc != nil {
		if err := s.healthFunc(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.sources.List(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	responses := make([]SourceResponse, 0, len(sources))
	for i := range sources {
		responses = append(responses, toSourceResponse(&sources[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sources": responses})
}

func (s *Server) createSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.ValidationError(err.Error()))
		return
	}

	source := &models.PlaylistSource{
		Name:     req.Name,
		Kind:     models.SourceKind(req.Kind),
		URL:      req.URL,
		Username: req.Username,
		Password: req.Password,
	}
	if err := s.sources.Create(c.Request.Context(), source); err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSourceResponse(source))
}

func (s *Server) getSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}

	source, err := s.sources.Get(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceResponse(source))
}

func (s *Server) updateSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}

	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.ValidationError(err.Error()))
		return
	}

	source := &models.PlaylistSource{
		ID:       id,
		Name:     req.Name,
		Kind:     models.SourceKind(req.Kind),
		URL:      req.URL,
		Username: req.Username,
		Password: req.Password,
	}
	if err := s.sources.Update(c.Request.Context(), source); err != nil {
		s.renderError(c, err)
		return
	}

	updated, err := s.sources.Get(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceResponse(updated))
}

func (s *Server) deleteSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}

	if err := s.sources.Delete(c.Request.Context(), id); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) syncSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	s.runSync(c, id, force, false)
}

func (s *Server) resyncSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}
	s.runSync(c, id, true, true)
}

// runSync drives one sync run to completion, draining progress so the last
// emitted stats can be returned
func (s *Server) runSync(c *gin.Context, sourceID uint, force, full bool) {
	progress := make(chan syncer.ProgressEvent, 64)
	done := make(chan syncer.Stats, 1)
	go func() {
		var last syncer.Stats
		for event := range progress {
			last = event.Stats
		}
		done <- last
	}()

	var changed bool
	var err error
	if full {
		changed, err = s.engine.FullResync(c.Request.Context(), sourceID, progress)
	} else {
		changed, err = s.engine.Sync(c.Request.Context(), sourceID, force, progress)
	}
	close(progress)
	stats := <-done

	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncResponse{Changed: changed, Stats: stats})
}

func (s *Server) enrichSource(c *gin.Context) {
	id, ok := s.sourceID(c)
	if !ok {
		return
	}

	var req EnrichRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.renderError(c, apperrors.ValidationError(err.Error()))
			return
		}
	}

	if s.enricher == nil {
		s.renderError(c, apperrors.ConfigError("metadata catalog is disabled", nil))
		return
	}
	if _, err := s.sources.Get(c.Request.Context(), id); err != nil {
		s.renderError(c, err)
		return
	}

	scope := enrichment.Scope{SourceID: id, EntryIDs: req.EntryIDs, Limit: req.Limit}
	result, err := s.enricher.EnrichLibrary(c.Request.Context(), scope, nil)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, EnrichResponse{
		Processed: result.Processed,
		Matched:   result.Matched,
		Failed:    result.Failed,
	})
}

func (s *Server) listEntries(c *gin.Context) {
	query := store.ListQuery{
		ContentType: models.ContentType(c.Query("content_type")),
		GroupTitle:  c.Query("group"),
		Search:      c.Query("search"),
		Limit:       intQuery(c, "limit", 100),
		Offset:      intQuery(c, "offset", 0),
	}
	if raw := c.Query("source_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.renderError(c, apperrors.ValidationError("invalid source_id"))
			return
		}
		query.SourceID = uint(id)
	}
	if raw := c.Query("matched"); raw != "" {
		matched := raw == "true"
		query.Matched = &matched
	}

	entries, total, err := s.catalog.List(c.Request.Context(), query)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:   toEntryResponses(entries),
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

func (s *Server) findMatches(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.ValidationError(err.Error()))
		return
	}
	if len(req.Titles) == 0 {
		s.renderError(c, apperrors.ValidationError("at least one title is required"))
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.catalog.FindMatches(c.Request.Context(), req.Titles, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": toEntryResponses(entries)})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.logs.RecentRuns(c.Request.Context(), intQuery(c, "limit", 20))
	if err != nil {
		s.renderError(c, err)
		return
	}

	responses := make([]RunResponse, 0, len(runs))
	for i := range runs {
		responses = append(responses, toRunResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"runs": responses})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.catalog.Stats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	bySource := make(map[string]int64, len(stats.BySource))
	for id, count := range stats.BySource {
		bySource[fmt.Sprintf("%d", id)] = count
	}
	c.JSON(http.StatusOK, StatsResponse{
		TotalEntries:  stats.TotalEntries,
		ByContentType: stats.ByContentType,
		BySource:      bySource,
		Matched:       stats.Matched,
		Unmatched:     stats.TotalEntries - stats.Matched,
	})
}

func (s *Server) sourceID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.renderError(c, apperrors.ValidationError("invalid source id"))
		return 0, false
	}
	return uint(id), true
}

func (s *Server) renderError(c *gin.Context, err error) {
	code := apperrors.GetErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeSyncRunning:
		status = http.StatusConflict
	case apperrors.CodeRateLimited:
		status = http.StatusTooManyRequests
	case apperrors.CodeUpstream, apperrors.CodeTransport, apperrors.CodeUpstreamEmpty:
		status = http.StatusBadGateway
	}

	c.JSON(status, ErrorResponse{
		Error:   string(code),
		Message: err.Error(),
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
