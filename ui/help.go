package ui

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"statwizard/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

// HelpPage is one markdown document of the help section.
type HelpPage struct {
	Slug  string
	Title string
	Body  template.HTML
	order string
}

// HelpLibrary holds the rendered help pages in display order.
type HelpLibrary struct {
	pages  []*HelpPage
	bySlug map[string]*HelpPage
}

// LoadHelp renders every .md file under dir. File names may carry a numeric
// prefix for ordering ("01-getting-started.md"); the first heading is the
// title.
func LoadHelp(fsys fs.FS, dir string) (*HelpLibrary, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list help pages: %w", err)
	}
	lib := &HelpLibrary{bySlug: make(map[string]*HelpPage, len(files))}
	for _, file := range files {
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read help page %s: %w", file, err)
		}
		base := strings.TrimSuffix(path.Base(file), ".md")
		slug := base
		if i := strings.IndexByte(base, '-'); i > 0 && isDigits(base[:i]) {
			slug = base[i+1:]
		}
		p := &HelpPage{Slug: slug, Title: firstHeading(src, slug), Body: renderMarkdown(string(src)), order: base}
		lib.pages = append(lib.pages, p)
		lib.bySlug[slug] = p
	}
	sort.Slice(lib.pages, func(i, j int) bool { return lib.pages[i].order < lib.pages[j].order })
	return lib, nil
}

// Pages returns the pages in display order.
func (l *HelpLibrary) Pages() []*HelpPage { return l.pages }

// Get looks up a page by slug.
func (l *HelpLibrary) Get(slug string) (*HelpPage, bool) {
	p, ok := l.bySlug[slug]
	return p, ok
}

func firstHeading(src []byte, fallback string) string {
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return fallback
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (s *Server) handleHelpIndex(c *gin.Context) {
	pages := s.help.Pages()
	if len(pages) == 0 {
		s.renderError(c, http.StatusNotFound, "No help pages available.")
		return
	}
	s.renderHelp(c, pages[0])
}

func (s *Server) handleHelpPage(c *gin.Context) {
	p, ok := s.help.Get(c.Param("slug"))
	if !ok {
		s.renderError(c, http.StatusNotFound, "Help page not found.")
		return
	}
	s.renderHelp(c, p)
}

func (s *Server) renderHelp(c *gin.Context, p *HelpPage) {
	s.renderTemplate(c, http.StatusOK, fragments.HelpPage, gin.H{
		"Title": p.Title,
		"Page":  p,
		"Pages": s.help.Pages(),
	})
}

// handleToasts returns and clears the pending toasts of the session.
func (s *Server) handleToasts(c *gin.Context) {
	ws := s.workspace(c)
	s.renderTemplate(c, http.StatusOK, fragments.Toasts, gin.H{"Toasts": s.toasts.Drain(ws.ID())})
}
