package ui

import (
	"bytes"
	"log"
	"net/http"
	"strings"

	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if fragments.IsPage(templateName) {
		s.addLayoutData(c, data)
	}

	// Render to a buffer first so a failing template never sends half a page
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[Render] Template error for %s: %v", templateName, err)
		log.Printf("[Render] Template data keys: %v", getMapKeys(data))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Template rendering failed"})
		return
	}

	if fragments.IsPage(templateName) && !strings.Contains(buf.String(), "</html>") {
		log.Printf("[Render] WARNING: rendered page %s appears truncated - missing </html> tag", templateName)
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(status)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("[Render] Error writing template response: %v", err)
	}
}

// addLayoutData fills what the header needs on every page.
func (s *Server) addLayoutData(c *gin.Context, data gin.H) {
	if _, ok := data["Title"]; !ok {
		data["Title"] = "Statistics wizard"
	}
	data["Catalog"] = s.catalog.All()
	data["SSE"] = s.hub != nil
	if ws := s.workspace(c); ws != nil {
		data["Dataset"] = ws.Dataset()
	}
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	if isHTMX(c) {
		c.Header("HX-Retarget", "#flash")
		c.Header("HX-Reswap", "innerHTML")
		c.String(status, message)
		return
	}
	s.renderTemplate(c, status, fragments.ErrorPage, gin.H{"Title": http.StatusText(status), "Status": status, "Message": message})
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// redirect sends htmx requests a client-side redirect and everyone else a 303.
func redirect(c *gin.Context, location string) {
	if isHTMX(c) {
		c.Header("HX-Redirect", location)
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

// Helper function to get map keys for logging
func getMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
