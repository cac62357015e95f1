package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

type handlers struct {
	svc Service
	log logrus.FieldLogger
}

type createProjectRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type clipView struct {
	types.Clip
	DurationLabel string `json:"duration_label"`
}

type projectView struct {
	types.Project
	DurationStr string          `json:"duration_str"`
	Segments    []types.Segment `json:"segments,omitempty"`
	Clips       []clipView      `json:"clips"`
}

func newClipView(c types.Clip) clipView {
	return clipView{Clip: c, DurationLabel: c.DurationLabel()}
}

func newProjectView(p types.Project, withSegments bool) projectView {
	v := projectView{Project: p, DurationStr: types.FormatDuration(p.DurationSeconds), Clips: make([]clipView, 0, len(p.Clips))}
	if withSegments {
		v.Segments = p.Segments
	}
	for _, c := range p.Clips {
		v.Clips = append(v.Clips, newClipView(c))
	}
	return v
}

func (h *handlers) health(c *gin.Context) {
	respondWithSuccess(c, http.StatusOK, "ok", gin.H{"status": "healthy"})
}

func (h *handlers) listProjects(c *gin.Context) {
	ps := h.svc.Projects()
	out := make([]projectView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProjectView(p, false))
	}
	respondWithSuccess(c, http.StatusOK, "", out)
}

func (h *handlers) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body", formatValidationErrors(err))
		return
	}
	p, err := h.svc.AddProject(c.Request.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusAccepted, "download started", newProjectView(p, false))
}

func (h *handlers) getProject(c *gin.Context) {
	p, err := h.svc.Project(c.Param("id"))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, "", newProjectView(p, true))
}

func (h *handlers) analyzeProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Analyze(c.Request.Context(), id); err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusAccepted, "analysis started", gin.H{"project_id": id})
}

func (h *handlers) renderProject(c *gin.Context) {
	started, err := h.svc.RenderAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	out := make([]clipView, 0, len(started))
	for _, cl := range started {
		out = append(out, newClipView(cl))
	}
	respondWithSuccess(c, http.StatusAccepted, "rendering started", out)
}

func (h *handlers) renderClip(c *gin.Context) {
	cl, err := h.svc.RenderClip(c.Request.Context(), c.Param("clipId"))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusAccepted, "rendering started", newClipView(cl))
}

func (h *handlers) getClip(c *gin.Context) {
	cl, err := h.svc.Clip(c.Param("clipId"))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, "", newClipView(cl))
}

func (h *handlers) manifest(c *gin.Context) {
	m, err := h.svc.Manifest(c.Param("id"))
	if err != nil {
		h.respondWithServiceError(c, err)
		return
	}
	respondWithSuccess(c, http.StatusOK, "", m)
}
