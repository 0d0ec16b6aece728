package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// DisableSourceRequest carries the group tag recorded on a disabled source
// @Description Disable source request
type DisableSourceRequest struct {
	Reason string `json:"reason" example:"broken"`
}

// SetWeightRequest overrides a source weight
// @Description Set source weight request
type SetWeightRequest struct {
	Weight *int64 `json:"weight" example:"10"`
}

// SearchResponse lists ranked candidates, best first
// @Description Aggregated search response
type SearchResponse struct {
	Results []domain.RankInput `json:"results"`
	Count   int                `json:"count"`
}

// ManualSwitchRequest names the candidate the reader picked
// @Description Manual switch request
type ManualSwitchRequest struct {
	Candidate domain.SearchCandidate `json:"candidate"`
}

// OperationResponse describes a live switch operation
// @Description Switch operation state
type OperationResponse struct {
	OperationID string             `json:"operation_id"`
	BookID      string             `json:"book_id"`
	Kind        domain.SwitchKind  `json:"kind"`
	State       domain.SwitchState `json:"state"`
}

// CancelResponse tells whether a live switch was cancelled
// @Description Cancel switch response
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// readyTimeout bounds each dependency ping of the readiness check
const readyTimeout = 2 * time.Second

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks the database and redis when configured)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Pinger{"database": s.db, "redis": s.redisClient}
	for name, p := range checks {
		if p == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			writeError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Source endpoints

// handleListSources godoc
// @Summary      List sources
// @Description  List every registered content source with its weight
// @Tags         Sources
// @Produce      json
// @Param        enabled  query     bool  false  "Only enabled sources"
// @Success      200      {array}   domain.ContentSource
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /sources [get]
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	list := s.registry.List
	if enabled, _ := strconv.ParseBool(r.URL.Query().Get("enabled")); enabled {
		list = s.registry.ListEnabled
	}

	sources, err := list(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	if sources == nil {
		sources = []*domain.ContentSource{}
	}

	writeJSON(w, http.StatusOK, sources)
}

// handleRegisterSource godoc
// @Summary      Register source
// @Description  Create or update a content source. An existing source keeps its weight.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ContentSource  true  "Source definition"
// @Success      201      {object}  domain.ContentSource
// @Failure      400      {object}  ErrorResponse  "Invalid request body or source"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /sources [post]
func (s *Server) handleRegisterSource(w http.ResponseWriter, r *http.Request) {
	var req domain.ContentSource
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := s.registry.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "failed to register source")
		return
	}

	writeJSON(w, http.StatusCreated, source)
}

// handleGetSource godoc
// @Summary      Get source
// @Description  Get a content source by ID
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  domain.ContentSource
// @Failure      400  {object}  ErrorResponse  "Missing source ID"
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /sources/{id} [get]
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing source id")
		return
	}

	source, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, source)
}

// handleEnableSource godoc
// @Summary      Enable source
// @Description  Re-enable a content source. Group tags are kept.
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Source not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /sources/{id}/enable [post]
func (s *Server) handleEnableSource(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Enable(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err, "failed to enable source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// handleDisableSource godoc
// @Summary      Disable source
// @Description  Disable a content source and tag it with a reason group
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        id       path      string                true   "Source ID"
// @Param        request  body      DisableSourceRequest  false  "Reason tag"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      404      {object}  ErrorResponse  "Source not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /sources/{id}/disable [post]
func (s *Server) handleDisableSource(w http.ResponseWriter, r *http.Request) {
	var req DisableSourceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := s.registry.Disable(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		writeServiceError(w, err, "failed to disable source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handleSetSourceWeight godoc
// @Summary      Override source weight
// @Description  Overwrite the weight of a content source
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "Source ID"
// @Param        request  body      SetWeightRequest  true  "New weight"
// @Success      200      {object}  domain.ContentSource
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      404      {object}  ErrorResponse  "Source not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /sources/{id}/weight [put]
func (s *Server) handleSetSourceWeight(w http.ResponseWriter, r *http.Request) {
	var req SetWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Weight == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := s.registry.SetWeight(r.Context(), id, *req.Weight); err != nil {
		writeServiceError(w, err, "failed to set weight")
		return
	}

	source, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get source")
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// Search endpoints

// handleSearch godoc
// @Summary      Search every source
// @Description  Probe all enabled sources for a title and return ranked candidates
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      domain.SearchQuery  true  "Title and optional author"
// @Success      200      {object}  SearchResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body or empty title"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.searchService.SearchRanked(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "search failed")
		return
	}
	if results == nil {
		results = []domain.RankInput{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// Switch endpoints

// handleAutoSwitch godoc
// @Summary      Automatic change source
// @Description  Probe every enabled source and move the book to the best match. Waits for the outcome unless async=true.
// @Tags         Switch
// @Produce      json
// @Param        id     path      string  true   "Book ID"
// @Param        async  query     bool    false  "Return as soon as the operation started"
// @Success      200    {object}  domain.SwitchOutcome  "Completed"
// @Success      202    {object}  OperationResponse     "Started"
// @Failure      404    {object}  ErrorResponse         "Book not found"
// @Failure      409    {object}  domain.SwitchOutcome  "Cancelled or superseded"
// @Failure      422    {object}  domain.SwitchOutcome  "Failed"
// @Router       /books/{id}/switch/auto [post]
func (s *Server) handleAutoSwitch(w http.ResponseWriter, r *http.Request) {
	book, ok := s.loadBook(w, r)
	if !ok {
		return
	}

	// The operation outlives the request when async=true
	op := s.coordinator.RequestAutoSwitch(context.WithoutCancel(r.Context()), book)
	s.respondOperation(w, r, op)
}

// handleManualSwitch godoc
// @Summary      Manual change source
// @Description  Move the book to a candidate picked from a search. Waits for the outcome unless async=true.
// @Tags         Switch
// @Accept       json
// @Produce      json
// @Param        id       path      string               true   "Book ID"
// @Param        async    query     bool                 false  "Return as soon as the operation started"
// @Param        request  body      ManualSwitchRequest  true   "Chosen candidate"
// @Success      200      {object}  domain.SwitchOutcome  "Completed"
// @Success      202      {object}  OperationResponse     "Started"
// @Failure      400      {object}  ErrorResponse         "Invalid request body"
// @Failure      404      {object}  ErrorResponse         "Book not found"
// @Failure      409      {object}  domain.SwitchOutcome  "Cancelled or superseded"
// @Failure      422      {object}  domain.SwitchOutcome  "Failed"
// @Router       /books/{id}/switch/manual [post]
func (s *Server) handleManualSwitch(w http.ResponseWriter, r *http.Request) {
	var req ManualSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Candidate.SourceID == "" || req.Candidate.ResultURL == "" {
		writeError(w, http.StatusBadRequest, "candidate needs source_id and result_url")
		return
	}

	book, ok := s.loadBook(w, r)
	if !ok {
		return
	}

	op := s.coordinator.RequestManualSwitch(context.WithoutCancel(r.Context()), book, req.Candidate)
	s.respondOperation(w, r, op)
}

// handleGetActiveSwitch godoc
// @Summary      Get active switch
// @Description  Get the live change-source operation of a book
// @Tags         Switch
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  OperationResponse
// @Failure      404  {object}  ErrorResponse  "No active switch"
// @Router       /books/{id}/switch [get]
func (s *Server) handleGetActiveSwitch(w http.ResponseWriter, r *http.Request) {
	op := s.coordinator.Active(r.PathValue("id"))
	if op == nil {
		writeError(w, http.StatusNotFound, "no active switch")
		return
	}
	writeJSON(w, http.StatusOK, operationResponse(op))
}

// handleCancelSwitch godoc
// @Summary      Cancel active switch
// @Description  Cancel the live change-source operation of a book. Refused once chapters are being fetched.
// @Tags         Switch
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  CancelResponse
// @Router       /books/{id}/switch [delete]
func (s *Server) handleCancelSwitch(w http.ResponseWriter, r *http.Request) {
	cancelled := s.coordinator.CancelActiveSwitch(r.PathValue("id"))
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

// loadBook reads the book named by the path, writing the error response
// itself when it cannot.
func (s *Server) loadBook(w http.ResponseWriter, r *http.Request) (*domain.Book, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing book id")
		return nil, false
	}
	book, err := s.books.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to get book")
		}
		return nil, false
	}
	return book, true
}

func (s *Server) respondOperation(w http.ResponseWriter, r *http.Request, op driving.SwitchOperation) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		writeJSON(w, http.StatusAccepted, operationResponse(op))
		return
	}

	outcome, err := op.Wait(r.Context())
	if err != nil {
		// Client went away; the operation keeps running
		s.logger.Debug("switch response abandoned", "operation_id", op.ID(), "error", err)
		return
	}
	writeJSON(w, outcomeStatus(outcome), outcome)
}

func operationResponse(op driving.SwitchOperation) OperationResponse {
	return OperationResponse{
		OperationID: op.ID(),
		BookID:      op.BookID(),
		Kind:        op.Kind(),
		State:       op.State(),
	}
}

func outcomeStatus(outcome *domain.SwitchOutcome) int {
	switch outcome.State {
	case domain.SwitchStateCompleted:
		return http.StatusOK
	case domain.SwitchStateCancelled:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto status codes
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
