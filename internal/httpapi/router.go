// Package httpapi exposes the project pipeline over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

// Service is the slice of the orchestrator the API drives.
type Service interface {
	Projects() []types.Project
	Project(id string) (types.Project, error)
	Clip(clipID string) (types.Clip, error)
	Manifest(projectID string) (types.Manifest, error)
	AddProject(ctx context.Context, url string) (types.Project, error)
	Analyze(ctx context.Context, projectID string) error
	RenderClip(ctx context.Context, clipID string) (types.Clip, error)
	RenderAll(ctx context.Context, projectID string) ([]types.Clip, error)
}

type Options struct {
	AllowOrigins []string
	Log          logrus.FieldLogger
}

// NewRouter builds the gin engine with CORS, request logging and every route.
func NewRouter(svc Service, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors.New(corsConfig(opts.AllowOrigins)))

	h := &handlers{svc: svc, log: log}
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		projects := api.Group("/projects")
		projects.GET("", h.listProjects)
		projects.POST("", h.createProject)
		projects.GET("/:id", h.getProject)
		projects.POST("/:id/analyze", h.analyzeProject)
		projects.POST("/:id/render", h.renderProject)
		projects.GET("/:id/manifest", h.manifest)

		clips := api.Group("/clips")
		clips.GET("/:clipId", h.getClip)
		clips.POST("/:clipId/render", h.renderClip)
	}

	r.NoRoute(func(c *gin.Context) {
		respondWithError(c, http.StatusNotFound, "route not found", nil)
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
