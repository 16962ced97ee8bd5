// Package ui serves a browsable view of stored runs: a run index, per-run
// HTML reports and xlsx exports. The JSON API can be mounted alongside.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"peakmotif/adapters/excel"
	"peakmotif/adapters/report"
	"peakmotif/domain/core"
	"peakmotif/internal"
	"peakmotif/internal/errors"
	"peakmotif/ports"
)

//go:embed templates/*
var embeddedFiles embed.FS

// indexLimit is how many runs the index lists
const indexLimit = 100

// App represents the UI application
type App struct {
	router    *chi.Mux
	repo      ports.ResultRepository
	templates *template.Template
	logger    *internal.Logger
	port      string
}

// Config holds UI application configuration
type Config struct {
	Port string
	// API, if set, is mounted under /api
	API http.Handler
}

// NewApp creates a new UI application
func NewApp(config Config, repo ports.ResultRepository, logger *internal.Logger) (*App, error) {
	templates, err := template.ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		repo:      repo,
		templates: templates,
		logger:    logger,
		port:      config.Port,
	}
	app.setupMiddleware()
	app.setupRoutes(config.API)
	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes(api http.Handler) {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRunReport)
	a.router.Get("/runs/{id}/export.xlsx", a.handleRunExport)
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if api != nil {
		a.router.Mount("/api", api)
	}
}

// Handler returns the root handler, for embedding and tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start() error {
	port := ":" + a.port
	a.logger.Info("Starting peakmotif server on %s", port)
	return http.ListenAndServe(port, a.router)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.repo.ListRuns(r.Context(), indexLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.renderTemplate(w, "index.html", map[string]interface{}{"Runs": runs})
}

func (a *App) handleRunReport(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(report.HTML(summary))
}

func (a *App) handleRunExport(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", summary.Run.ID.String()+".xlsx"))
	if err := excel.WriteTo(w, excel.Workbook{Run: summary.Run, Results: summary.Results, Failures: summary.Failures}); err != nil {
		a.logger.Error("xlsx export of %s failed: %v", summary.Run.ID, err)
	}
}

func (a *App) loadRun(w http.ResponseWriter, r *http.Request) (report.Summary, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return report.Summary{}, false
	}
	run, err := a.repo.GetRun(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return report.Summary{}, false
	}
	results, err := a.repo.GetResults(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return report.Summary{}, false
	}
	failures, err := a.repo.GetFailures(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return report.Summary{}, false
	}
	return report.Summary{Run: run, Results: results, Failures: failures}, true
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.GetCode(err) == errors.CodeNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	a.logger.WithField("path", r.URL.Path).Error("request failed: %v", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// Template helpers
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		a.logger.Error("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
