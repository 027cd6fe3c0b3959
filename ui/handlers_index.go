package ui

import (
	"errors"
	"log"
	"net/http"

	"statwizard/app"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/ui/middleware"
	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

const previewRows = 10

func (s *Server) workspace(c *gin.Context) *app.Workspace {
	id := middleware.SessionID(c)
	if id == "" {
		return nil
	}
	return s.sessions.Workspace(id)
}

// handleIndex renders the analysis catalog, the dataset loader and the
// preview of the loaded dataset.
func (s *Server) handleIndex(c *gin.Context) {
	ws := s.workspace(c)
	ds := ws.Dataset()
	s.renderTemplate(c, http.StatusOK, fragments.IndexPage, gin.H{
		"Title":    "Statistics wizard",
		"Examples": s.examples.List(),
		"Preview":  app.Preview(ds, previewRows),
		"MaxMB":    s.maxUpload >> 20,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Count()})
}

// handleDatasetUpload parses an uploaded CSV or XLSX file and makes it the
// workspace dataset, resetting every wizard.
func (s *Server) handleDatasetUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderError(c, http.StatusRequestEntityTooLarge, "The file is larger than the upload limit.")
			return
		}
		s.renderError(c, http.StatusBadRequest, "Choose a CSV or Excel file to upload.")
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, "The uploaded file could not be read.")
		return
	}
	defer f.Close()

	ds, err := s.reader.Read(fh.Filename, f, dataset.SourceUpload)
	if err != nil {
		log.Printf("[Upload] %s rejected: %v", fh.Filename, err)
		s.renderError(c, http.StatusUnprocessableEntity, "The file could not be loaded: "+err.Error())
		return
	}
	s.loadDataset(c, ds)
}

// handleExampleLoad loads a canned dataset.
func (s *Server) handleExampleLoad(c *gin.Context) {
	key := c.Param("key")
	ex, err := s.examples.Get(key)
	if err != nil {
		s.renderError(c, http.StatusNotFound, "Unknown example dataset.")
		return
	}
	ds, err := s.examples.Load(key)
	if err != nil {
		log.Printf("[Examples] Failed to load %s: %v", key, err)
		s.renderError(c, http.StatusInternalServerError, "The example dataset could not be loaded.")
		return
	}
	ws := s.workspace(c)
	if err := ws.LoadDataset(ds); err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.toasts.Push(ws.ID(), Toast{Level: ToastInfo, Title: ex.Title, Message: "Example dataset loaded."})
	if c.Query("open") == "1" && ex.Suggested != "" {
		redirect(c, "/wizard/"+string(ex.Suggested))
		return
	}
	redirect(c, "/")
}

func (s *Server) loadDataset(c *gin.Context, ds *dataset.Dataset) {
	ws := s.workspace(c)
	if err := ws.LoadDataset(ds); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrEmptyDataset) {
			status = http.StatusUnprocessableEntity
		}
		s.renderError(c, status, err.Error())
		return
	}
	s.toasts.Push(ws.ID(), Toast{Level: ToastInfo, Title: ds.Name, Message: "Dataset loaded."})
	redirect(c, "/")
}

// handleDatasetPreview renders the preview fragment of the loaded dataset.
func (s *Server) handleDatasetPreview(c *gin.Context) {
	ds := s.workspace(c).Dataset()
	s.renderTemplate(c, http.StatusOK, fragments.DatasetPreview, gin.H{"Preview": app.Preview(ds, previewRows)})
}
