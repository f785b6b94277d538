package note

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jsvoboda/notes-api/internal/auth"
	"github.com/jsvoboda/notes-api/internal/httputil"
	"github.com/jsvoboda/notes-api/internal/logging"
	"github.com/jsvoboda/notes-api/internal/metrics"
)

// Handler contains HTTP handlers for note endpoints. All routes are
// mounted behind the auth middleware, so a user id is always present.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// NoteRequest represents the create/update request body
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create handles note creation
// @Summary      Create note
// @Tags         notes
// @Accept       json
// @Produce      json
// @Param        request body NoteRequest true "Note fields"
// @Success      201 {object} Note
// @Failure      400 {object} httputil.ErrorResponse "Missing title or content"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Router       /api/notes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ownerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create note request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), ownerID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, ErrTitleContentRequired) {
			httputil.RespondErrorWithCode(w, "title and content are required", httputil.CodeTitleContentRequired, http.StatusBadRequest)
			return
		}
		logger.Error("failed to create note", "error", err.Error())
		httputil.RespondErrorWithCode(w, "error creating note", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	metrics.NotesCreatedTotal.Inc()

	httputil.RespondJSON(w, created, http.StatusCreated)
}

// List handles listing the caller's notes, newest first
// @Summary      List notes
// @Tags         notes
// @Produce      json
// @Success      200 {array} Note
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Router       /api/notes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ownerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	notes, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to list notes", "error", err.Error())
		httputil.RespondErrorWithCode(w, "error fetching notes", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, notes, http.StatusOK)
}

// Update handles rewriting a note's title and content
// @Summary      Update note
// @Tags         notes
// @Accept       json
// @Produce      json
// @Param        id path string true "Note ID"
// @Param        request body NoteRequest true "Note fields"
// @Success      200 {object} Note
// @Failure      400 {object} httputil.ErrorResponse "Invalid id or missing fields"
// @Failure      404 {object} httputil.ErrorResponse "Note not found"
// @Router       /api/notes/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ownerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	noteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid note id", httputil.CodeInvalidNoteID, http.StatusBadRequest)
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update note request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.Update(r.Context(), ownerID, noteID, req.Title, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrTitleContentRequired):
			httputil.RespondErrorWithCode(w, "title and content are required", httputil.CodeTitleContentRequired, http.StatusBadRequest)
		case errors.Is(err, ErrNotFound):
			httputil.RespondErrorWithCode(w, "note not found", httputil.CodeNoteNotFound, http.StatusNotFound)
		default:
			logger.Error("failed to update note", "error", err.Error())
			httputil.RespondErrorWithCode(w, "error updating note", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Delete handles hard-deleting a note
// @Summary      Delete note
// @Tags         notes
// @Produce      json
// @Param        id path string true "Note ID"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid id"
// @Failure      404 {object} httputil.ErrorResponse "Note not found"
// @Router       /api/notes/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ownerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	noteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid note id", httputil.CodeInvalidNoteID, http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), ownerID, noteID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "note not found", httputil.CodeNoteNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to delete note", "error", err.Error())
		httputil.RespondErrorWithCode(w, "error deleting note", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, map[string]string{"message": "note deleted successfully"}, http.StatusOK)
}
