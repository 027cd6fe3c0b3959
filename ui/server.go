package ui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"statwizard/adapters/examples"
	"statwizard/adapters/excel"
	"statwizard/app"
	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/internal/api"
	"statwizard/internal/wizard"
	"statwizard/ports"
	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html templates/*/*.html static/* help/*.md
var embeddedFiles embed.FS

// Deps are the collaborators the server is wired with.
type Deps struct {
	Sessions *app.SessionManager
	Examples *examples.Loader
	Reader   *excel.DataReader
	Runs     ports.RunRepository // optional
	Hub      *api.SSEHub
	Toasts   *ToastQueue

	MaxUploadBytes int64
	CookieMaxAge   time.Duration
}

// Server represents the web server for the analysis wizards
type Server struct {
	router    *gin.Engine
	templates *template.Template
	help      *HelpLibrary

	sessions  *app.SessionManager
	catalog   *analysis.Catalog
	examples  *examples.Loader
	reader    *excel.DataReader
	runs      ports.RunRepository
	hub       *api.SSEHub
	toasts    *ToastQueue
	maxUpload int64

	// runCtx parents the analysis calls started by handlers. They outlive the
	// request that started them and end with the server.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// WizardObservers attaches toasts and live events to every wizard a browser
// session mounts.
func WizardObservers(catalog *analysis.Catalog, toasts *ToastQueue, hub *api.SSEHub) app.ObserverFactory {
	return func(sessionID core.SessionID, analysisID core.AnalysisID) []wizard.Observer {
		title := string(analysisID)
		if def, err := catalog.Get(analysisID); err == nil {
			title = def.Title
		}
		var out []wizard.Observer
		if toasts != nil {
			out = append(out, toasts.Observer(sessionID, title))
		}
		if hub != nil {
			out = append(out, api.NewWizardBroadcaster(hub, sessionID, analysisID))
		}
		return out
	}
}

// NewServer creates a new web server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("server needs a session manager")
	}
	if deps.Examples == nil {
		deps.Examples = examples.NewLoader()
	}
	if deps.Reader == nil {
		deps.Reader = excel.NewDataReader(0)
	}
	if deps.Toasts == nil {
		deps.Toasts = NewToastQueue(5)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 20 << 20
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    gin.New(),
		sessions:  deps.Sessions,
		catalog:   deps.Sessions.Catalog(),
		examples:  deps.Examples,
		reader:    deps.Reader,
		runs:      deps.Runs,
		hub:       deps.Hub,
		toasts:    deps.Toasts,
		maxUpload: deps.MaxUploadBytes,
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	if err := s.parseTemplates(); err != nil {
		cancel()
		return nil, err
	}
	help, err := LoadHelp(embeddedFiles, "help")
	if err != nil {
		cancel()
		return nil, err
	}
	s.help = help

	s.setupMiddleware(deps.CookieMaxAge)
	s.setupRoutes()
	return s, nil
}

func (s *Server) parseTemplates() error {
	templatesFS, err := fs.Sub(embeddedFiles, "templates")
	if err != nil {
		return fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	s.templates = template.New("").Funcs(templateFuncs())
	for _, file := range fragments.GetAllTemplatePaths() {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", file, err)
		}
		if _, err := s.templates.New(file).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse %s template %s: %w", fragments.GetTemplateCategory(file), file, err)
		}
	}
	log.Printf("[TemplateInit] Parsed %d templates", len(fragments.GetAllTemplatePaths()))
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)

	// Datasets
	s.router.POST("/datasets/upload", s.handleDatasetUpload)
	s.router.POST("/datasets/examples/:key", s.handleExampleLoad)
	s.router.GET("/datasets/preview", s.handleDatasetPreview)

	// Wizards
	w := s.router.Group("/wizard/:analysis")
	{
		w.GET("", s.handleWizardPage)
		w.GET("/panel", s.handleWizardPanel)
		w.POST("/select", s.handleSelect)
		w.POST("/defaults", s.handleResetSelections)
		w.POST("/next", s.handleNext)
		w.POST("/prev", s.handlePrev)
		w.POST("/goto/:step", s.handleGoTo)
		w.POST("/run", s.handleRun)
		w.GET("/export/:format", s.handleExport)
	}

	// JSON state for scripts and the CLI
	s.router.GET("/api/wizard/:analysis", s.handleWizardJSON)

	// History, help and notifications
	s.router.GET("/history", s.handleHistory)
	s.router.GET("/help", s.handleHelpIndex)
	s.router.GET("/help/:slug", s.handleHelpPage)
	s.router.GET("/toasts", s.handleToasts)
	if s.hub != nil {
		s.router.GET("/events", s.hub.HandleSSE)
	}

	s.router.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Page not found.")
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.cancelRun()
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	s.cancelRun()
	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close stops in-flight analysis calls started by handlers.
func (s *Server) Close() {
	s.cancelRun()
}
