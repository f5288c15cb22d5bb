package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"careercatalyst-backend/internal/entitlement"
	"careercatalyst-backend/internal/extract"
	"careercatalyst-backend/internal/llm"
	"careercatalyst-backend/internal/prompt"
	"careercatalyst-backend/internal/server/middleware"
	"careercatalyst-backend/internal/server/respond"
	"careercatalyst-backend/internal/session"
)

// maxUploadBytes caps PDF uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler wires HTTP handlers to per-profile session coordinators.
type Handler struct {
	Manager *Manager
}

// NewHandler constructs a Handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{Manager: manager}
}

// RegisterRoutes attaches session routes to the router group. The group must
// run the Profile middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", h.snapshot)
	rg.POST("/session/unlock", h.unlock)
	rg.POST("/session/unlock/membership", h.unlockMembership)
	rg.POST("/session/reset", h.reset)

	rg.PUT("/session/resume", h.setResume)
	rg.PUT("/session/job", h.setJob)
	rg.POST("/session/documents", h.uploadDocument)

	rg.POST("/session/analyses", h.runAnalysis)
	rg.POST("/session/analyses/:id/restore", h.restoreAnalysis)

	rg.POST("/session/versions", h.saveVersion)
	rg.PUT("/session/versions/active", h.updateActiveVersion)
	rg.POST("/session/versions/:id/select", h.selectVersion)

	rg.POST("/session/applications", h.trackApplication)
	rg.PATCH("/session/applications/:id", h.updateApplicationStatus)
	rg.DELETE("/session/applications/:id", h.deleteApplication)

	rg.PUT("/session/theme", h.setTheme)
	rg.PUT("/session/changelog", h.markChangelogSeen)
}

func (h *Handler) coordinator(c *gin.Context) (*session.Coordinator, bool) {
	profileID := middleware.ProfileIDFromContext(c)
	coord, err := h.Manager.Coordinator(c.Request.Context(), profileID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load session", nil)
		return nil, false
	}
	return coord, true
}

func (h *Handler) snapshot(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	state := coord.Snapshot()
	respond.OK(c, gin.H{
		"state":     state,
		"in_flight": coord.InFlight(),
		"kinds":     prompt.Kinds(),
	})
}

type unlockRequest struct {
	Email string `json:"email"`
}

func (h *Handler) unlock(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.Unlock(c.Request.Context(), req.Email); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"unlocked": true})
}

type unlockMembershipRequest struct {
	MembershipID string `json:"membership_id"`
}

func (h *Handler) unlockMembership(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req unlockMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.UnlockMembership(c.Request.Context(), req.MembershipID); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"unlocked": true})
}

func (h *Handler) reset(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	if err := coord.ResetSession(c.Request.Context()); err != nil {
		writeSessionError(c, err)
		return
	}
	// Drop the cached coordinator so the next request rebuilds from the store.
	h.Manager.Evict(middleware.ProfileIDFromContext(c))
	respond.OK(c, gin.H{"reset": true})
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *Handler) setResume(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.SetResumeText(c.Request.Context(), req.Text); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"saved": true})
}

func (h *Handler) setJob(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.SetJobText(c.Request.Context(), req.Text); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"saved": true})
}

func (h *Handler) uploadDocument(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	target := session.UploadTarget(c.PostForm("target"))
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "a file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "failed to read upload", nil)
		return
	}
	if len(data) > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 10 MB limit", nil)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if err := coord.UploadDocument(c.Request.Context(), mimeType, data, target); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"target": target, "extracted": true})
}

type runAnalysisRequest struct {
	Kind string `json:"kind"`
}

func (h *Handler) runAnalysis(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req runAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	record, err := coord.RunAnalysis(c.Request.Context(), prompt.Kind(req.Kind))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, record)
}

func (h *Handler) restoreAnalysis(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	record, err := coord.RestoreAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, record)
}

type saveVersionRequest struct {
	Name string `json:"name"`
}

func (h *Handler) saveVersion(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req saveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	version, err := coord.SaveVersion(c.Request.Context(), req.Name)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, version)
}

func (h *Handler) updateActiveVersion(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	version, err := coord.UpdateActiveVersion(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, version)
}

func (h *Handler) selectVersion(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	version, err := coord.SelectVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, version)
}

type trackApplicationRequest struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
}

func (h *Handler) trackApplication(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req trackApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	app, err := coord.TrackApplication(c.Request.Context(), req.JobTitle, req.Company)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, app)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateApplicationStatus(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	app, err := coord.UpdateApplicationStatus(c.Request.Context(), c.Param("id"), session.ApplicationStatus(req.Status))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, app)
}

func (h *Handler) deleteApplication(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	if err := coord.DeleteApplication(c.Request.Context(), c.Param("id")); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"deleted": true})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handler) setTheme(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.SetTheme(c.Request.Context(), req.Theme); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"theme": req.Theme})
}

type changelogRequest struct {
	Version string `json:"version"`
}

func (h *Handler) markChangelogSeen(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	var req changelogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := coord.MarkChangelogSeen(c.Request.Context(), req.Version); err != nil {
		writeSessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"last_seen_version": req.Version})
}

// writeSessionError maps coordinator errors onto HTTP statuses.
func writeSessionError(c *gin.Context, err error) {
	var vErr *session.ValidationError
	var provErr *llm.ProviderError
	switch {
	case errors.As(err, &vErr):
		respond.Error(c, http.StatusBadRequest, "validation_error", vErr.Msg, nil)
	case errors.Is(err, session.ErrLocked):
		respond.Error(c, http.StatusForbidden, "locked", "unlock your session to use this feature", nil)
	case errors.Is(err, session.ErrNotEntitled):
		respond.Error(c, http.StatusForbidden, "not_entitled", "no active subscription found", nil)
	case errors.Is(err, session.ErrBusy):
		respond.Error(c, http.StatusConflict, "busy", "another operation is already in progress", nil)
	case errors.Is(err, session.ErrNoActiveVersion),
		errors.Is(err, session.ErrVersionNotFound),
		errors.Is(err, session.ErrApplicationNotFound),
		errors.Is(err, session.ErrRecordNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, extract.ErrUnreadableDocument):
		respond.Error(c, http.StatusUnprocessableEntity, "unreadable_document", "could not extract text from the document", nil)
	case errors.Is(err, llm.ErrMissingAPIKey), errors.Is(err, entitlement.ErrMissingAPIKey):
		respond.Error(c, http.StatusServiceUnavailable, "provider_unavailable", "service is not configured", nil)
	case errors.As(err, &provErr):
		respond.Error(c, http.StatusBadGateway, "provider_error", "the model provider returned an error", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
	}
}
