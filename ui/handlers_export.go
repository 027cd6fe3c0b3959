package ui

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"statwizard/app"
	"statwizard/domain/core"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport downloads the held result as csv, xlsx or the plot as png.
// The result is only exported from a result step.
func (s *Server) handleExport(c *gin.Context) {
	sess := s.analysisSession(c)
	if sess == nil {
		return
	}
	st := sess.Controller().State()
	if !st.HasResult() || st.CurrentStep < sess.Controller().Config().SummaryStep {
		s.renderError(c, http.StatusConflict, "Run the analysis before exporting.")
		return
	}
	res := st.LastResult

	var (
		buf         bytes.Buffer
		contentType string
		err         error
	)
	format := c.Param("format")
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = app.WriteCSV(&buf, res)
	case "xlsx":
		contentType = xlsxContentType
		err = app.WriteXLSX(&buf, res)
	case "png":
		contentType = "image/png"
		var png []byte
		png, err = app.PlotPNG(res)
		buf.Write(png)
	default:
		s.renderError(c, http.StatusNotFound, "Unknown export format.")
		return
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, "This result has no plot.")
			return
		}
		log.Printf("[Export] %s %s failed: %v", res.AnalysisID, format, err)
		s.renderError(c, http.StatusInternalServerError, "The export could not be created.")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.ExportFileName(res, format)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
