package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/quiz"
	"github.com/p-n-ai/study-centre/internal/routing"
)

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"paragraphs":  paragraphs,
	"checkPath":   routing.CheckPath,
	"pagePath":    routing.PagePath,
	"inlineCheck": inlineCheck,
	"inc":         func(i int) int { return i + 1 },
	"letter":      func(i int) string { return string(rune('A' + i)) },
}

func inlineCheck(s *catalog.Section, id string) *catalog.Question {
	if q, ok := s.InlineCheck(id); ok {
		return &q
	}
	return nil
}

// templates holds one parsed set per page template, each combined with the layout.
var templates = mustParse(templatesFS)

func mustParse(fsys fs.FS) map[string]*template.Template {
	pages := []string{"home.html", "area.html", "overview.html", "section.html", "exam.html", "loading.html", "error.html"}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		out[p] = template.Must(template.New(p).Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+p))
	}
	return out
}

// head is the document metadata of a page.
type head struct {
	Title       string
	Description string
	Refresh     int // seconds; zero disables the meta refresh
}

// pageView is the data handed to every page template.
type pageView struct {
	Head     head
	Entry    *routing.Entry
	Course   *catalog.Course
	Nav      routing.Nav
	Section  *catalog.Section
	Exam     *catalog.Exam
	Children []routing.Link
	Checks   map[string]*quiz.Result
	Areas    []areaView
	Message  string
	Status   int
}

type areaView struct {
	Name    string
	Path    string
	Courses []routing.Link
}

func render(name string, data any) ([]byte, error) {
	t, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// paragraphs splits block text on blank lines.
func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(s), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// headFor derives the title and description of a page from its content.
func headFor(e *routing.Entry, page *routing.Page) head {
	h := head{
		Title:       e.Title + " | " + e.Course.Title,
		Description: e.Course.Description,
	}
	switch {
	case page != nil && page.Section != nil:
		if page.Section.SEO.Title != "" {
			h.Title = page.Section.SEO.Title
		}
		if page.Section.SEO.Description != "" {
			h.Description = page.Section.SEO.Description
		} else if page.Section.Subtitle != "" {
			h.Description = page.Section.Subtitle
		}
	case page != nil && page.Exam != nil:
		if page.Exam.Title != "" {
			h.Title = page.Exam.Title + " | " + e.Course.Title
		}
		if page.Exam.Description != "" {
			h.Description = page.Exam.Description
		}
	case e.Kind == routing.KindCourse:
		h.Title = e.Course.Title
	case e.Kind == routing.KindModule && e.Module.Description != "":
		h.Description = e.Module.Description
	}
	return h
}

func templateFor(k routing.Kind) string {
	switch k {
	case routing.KindSection:
		return "section.html"
	case routing.KindExam:
		return "exam.html"
	default:
		return "overview.html"
	}
}
