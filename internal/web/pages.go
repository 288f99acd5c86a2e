package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/study-centre/internal/quiz"
	"github.com/p-n-ai/study-centre/internal/routing"
)

// loadingRefresh is how often the loading page polls for the finished page.
const loadingRefresh = 1

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	st := s.site.Load()
	view := pageView{
		Head: head{Title: "Study Centre", Description: "Courses, modules and mock exams for electrical trades and general upskilling."},
	}
	for _, a := range st.registry.Areas() {
		view.Areas = append(view.Areas, areaViewOf(a))
	}
	s.writePage(w, r, http.StatusOK, "home.html", view)
}

func (s *Server) handleArea(st *site, a *routing.Area) http.HandlerFunc {
	view := pageView{
		Head:  head{Title: a.Name + " | Study Centre", Description: "Courses in " + a.Name + "."},
		Areas: []areaView{areaViewOf(a)},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.writePage(w, r, http.StatusOK, "area.html", view)
	}
}

func areaViewOf(a *routing.Area) areaView {
	v := areaView{Name: a.Name, Path: routing.StudyCentrePrefix + a.Name}
	for _, t := range a.Tables {
		course := t.Entries[0]
		v.Courses = append(v.Courses, routing.Link{Path: course.Path(), Label: course.Label(), Title: course.Title})
	}
	return v
}

func (s *Server) handlePage(st *site, e *routing.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pageKey(st.version, e)
		if body, ok := s.pages.get(r.Context(), key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeHTML(w, http.StatusOK, body)
			return
		}

		page, done, err := s.loadWithFallback(r.Context(), e)
		if !done {
			s.writeLoading(w, r, e)
			return
		}
		if err != nil {
			s.writeLoadError(w, r, e, err)
			return
		}

		body, err := s.renderEntry(st, e, page, nil)
		if err != nil {
			s.logger.Error("render failed", "route", routeKey(e), "error", err)
			s.writeError(w, r, http.StatusInternalServerError, e, "Something went wrong while showing this page.")
			return
		}
		s.pages.set(r.Context(), key, body)
		w.Header().Set("X-Cache", "MISS")
		writeHTML(w, http.StatusOK, body)
	}
}

// loadWithFallback waits up to FallbackAfter for e's content. done is false
// when the wait ran out; the load keeps running for the next request.
func (s *Server) loadWithFallback(ctx context.Context, e *routing.Entry) (page *routing.Page, done bool, err error) {
	if e.Ready() {
		page, err = e.Load(ctx)
		return page, true, err
	}

	type result struct {
		page *routing.Page
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := e.Load(ctx)
		ch <- result{p, err}
	}()

	timer := time.NewTimer(s.cfg.FallbackAfter)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.page, true, res.err
	case <-timer.C:
		return nil, false, nil
	}
}

func (s *Server) handleInlineCheck(st *site, e *routing.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID := chi.URLParam(r, "checkID")

		page, err := e.Load(r.Context())
		if err != nil {
			s.writeLoadError(w, r, e, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, http.StatusBadRequest, e, "The form could not be read.")
			return
		}
		selected, err := strconv.Atoi(r.PostForm.Get("option"))
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, e, "Choose an answer before checking.")
			return
		}

		res, err := s.cfg.Quiz.CheckInline(r.Context(), learnerID(r), routeKey(e), page.Section, checkID, selected)
		if err != nil {
			status := statusFor(err)
			s.writeError(w, r, status, e, messageFor(status))
			return
		}

		body, err := s.renderEntry(st, e, page, map[string]*quiz.Result{checkID: &res})
		if err != nil {
			s.logger.Error("render failed", "route", routeKey(e), "error", err)
			s.writeError(w, r, http.StatusInternalServerError, e, "Something went wrong while showing this page.")
			return
		}
		writeHTML(w, http.StatusOK, body)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, nil, "There is no study centre page at "+r.URL.Path+".")
}

func (s *Server) renderEntry(st *site, e *routing.Entry, page *routing.Page, checks map[string]*quiz.Result) ([]byte, error) {
	view := pageView{
		Head:   headFor(e, page),
		Entry:  e,
		Course: e.Course,
		Nav:    st.registry.Nav(e, page),
		Checks: checks,
	}
	if page != nil {
		view.Section = page.Section
		view.Exam = page.Exam
	}
	if t := st.registry.Table(e); t != nil {
		for _, c := range t.Children(e) {
			view.Children = append(view.Children, routing.Link{Path: c.Path(), Label: c.Label(), Title: c.Title})
		}
		if e.Kind == routing.KindCourse {
			for _, c := range t.Entries {
				if c.Kind == routing.KindExam {
					view.Children = append(view.Children, routing.Link{Path: c.Path(), Label: c.Label(), Title: c.Title})
				}
			}
		}
	}
	return render(templateFor(e.Kind), view)
}

func (s *Server) writeLoading(w http.ResponseWriter, r *http.Request, e *routing.Entry) {
	w.Header().Set("Cache-Control", "no-store")
	view := pageView{
		Head:  head{Title: e.Title + " | " + e.Course.Title, Description: e.Course.Description, Refresh: loadingRefresh},
		Entry: e,
	}
	s.writePage(w, r, http.StatusAccepted, "loading.html", view)
}

// writeLoadError is the error boundary for content that failed to load.
func (s *Server) writeLoadError(w http.ResponseWriter, r *http.Request, e *routing.Entry, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return
	}
	status := statusFor(err)
	s.logger.Warn("page load failed", "route", routeKey(e), "status", status, "error", err)
	s.writeError(w, r, status, e, messageFor(status))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, e *routing.Entry, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	view := pageView{
		Head:    head{Title: http.StatusText(status) + " | Study Centre"},
		Entry:   e,
		Message: msg,
		Status:  status,
	}
	s.writePage(w, r, status, "error.html", view)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, status int, name string, view pageView) {
	body, err := render(name, view)
	if err != nil {
		s.logger.Error("render failed", "template", name, "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, body)
}

// learnerID identifies the learner from the X-Learner-ID header or the
// learner_id cookie. Empty means anonymous.
func learnerID(r *http.Request) string {
	if id := r.Header.Get("X-Learner-ID"); id != "" {
		return id
	}
	if c, err := r.Cookie("learner_id"); err == nil {
		return c.Value
	}
	return ""
}
