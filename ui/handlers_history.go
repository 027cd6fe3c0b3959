package ui

import (
	"log"
	"net/http"
	"strconv"

	"statwizard/models"
	"statwizard/ui/middleware"
	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

const historyLimit = 50

// handleHistory lists the latest runs of the browser session. Without a
// database the page explains that history is off.
func (s *Server) handleHistory(c *gin.Context) {
	data := gin.H{"Title": "Run history", "Enabled": s.runs != nil}
	if s.runs == nil {
		s.renderTemplate(c, http.StatusOK, fragments.HistoryPage, data)
		return
	}

	limit := historyLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	id := string(middleware.SessionID(c))
	ctx := c.Request.Context()
	runs, err := s.runs.ListSessionRuns(ctx, id, limit)
	if err != nil {
		log.Printf("[History] Failed to list runs for %s: %v", id, err)
		s.renderError(c, http.StatusInternalServerError, "Run history is unavailable.")
		return
	}
	stats, err := s.runs.StatsBySession(ctx, id)
	if err != nil {
		log.Printf("[History] Failed to aggregate runs for %s: %v", id, err)
		stats = nil
	}

	titles := make(map[string]string)
	for _, d := range s.catalog.All() {
		titles[string(d.ID)] = d.Title
	}
	data["Runs"] = runRows(runs, titles)
	data["Stats"] = stats
	data["Titles"] = titles
	s.renderTemplate(c, http.StatusOK, fragments.HistoryPage, data)
}

// runRow is one line of the history table.
type runRow struct {
	*models.AnalysisRun
	Title string
}

func runRows(runs []*models.AnalysisRun, titles map[string]string) []runRow {
	out := make([]runRow, 0, len(runs))
	for _, r := range runs {
		title := titles[r.AnalysisID]
		if title == "" {
			title = r.AnalysisID
		}
		out = append(out, runRow{AnalysisRun: r, Title: title})
	}
	return out
}
