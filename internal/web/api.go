package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/progress"
	"github.com/p-n-ai/study-centre/internal/quiz"
	"github.com/p-n-ai/study-centre/internal/routing"
)

const maxBodyBytes = 1 << 20

type entryJSON struct {
	Slug  string       `json:"slug"`
	Path  string       `json:"path"`
	Kind  routing.Kind `json:"kind"`
	Label string       `json:"label"`
	Title string       `json:"title"`
}

func entryOf(e *routing.Entry) entryJSON {
	return entryJSON{Slug: e.Slug, Path: e.Path(), Kind: e.Kind, Label: e.Label(), Title: e.Title}
}

type courseJSON struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Entries     []entryJSON `json:"entries"`
}

type areaJSON struct {
	Name    string       `json:"name"`
	Courses []courseJSON `json:"courses"`
}

func (s *Server) apiCatalog(w http.ResponseWriter, r *http.Request) {
	st := s.site.Load()
	resp := struct {
		Version uint64     `json:"version"`
		Areas   []areaJSON `json:"areas"`
	}{Version: st.version}

	for _, a := range st.registry.Areas() {
		aj := areaJSON{Name: a.Name}
		for _, t := range a.Tables {
			cj := courseJSON{Key: t.Course.Key, Title: t.Course.Title, Description: t.Course.Description}
			for _, e := range t.Entries {
				cj.Entries = append(cj.Entries, entryOf(e))
			}
			aj.Courses = append(aj.Courses, cj)
		}
		resp.Areas = append(resp.Areas, aj)
	}
	writeJSON(w, http.StatusOK, resp)
}

// sectionJSON is a section with quiz and inline check answers removed.
type sectionJSON struct {
	Title        string               `json:"title"`
	Subtitle     string               `json:"subtitle,omitempty"`
	SEO          catalog.SEO          `json:"seo"`
	Summary      []catalog.SummaryBox `json:"summary,omitempty"`
	Outcomes     []string             `json:"outcomes,omitempty"`
	Blocks       []catalog.Block      `json:"blocks"`
	InlineChecks []quiz.Prompt        `json:"inline_checks,omitempty"`
	FAQs         []catalog.FAQ        `json:"faqs,omitempty"`
	Quiz         quizJSON             `json:"quiz"`
}

type quizJSON struct {
	Title         string        `json:"title"`
	PassThreshold int           `json:"pass_threshold"`
	Questions     []quiz.Prompt `json:"questions"`
}

func sectionOf(sec *catalog.Section) *sectionJSON {
	return &sectionJSON{
		Title:        sec.Title,
		Subtitle:     sec.Subtitle,
		SEO:          sec.SEO,
		Summary:      sec.Summary,
		Outcomes:     sec.Outcomes,
		Blocks:       sec.Blocks,
		InlineChecks: quiz.Prompts(sec.InlineChecks),
		FAQs:         sec.FAQs,
		Quiz: quizJSON{
			Title:         sec.Quiz.Title,
			PassThreshold: sec.QuizPassThreshold(),
			Questions:     quiz.Prompts(sec.Quiz.Questions),
		},
	}
}

type navJSON struct {
	Back *routing.Link `json:"back,omitempty"`
	Prev *routing.Link `json:"prev,omitempty"`
	Next *routing.Link `json:"next,omitempty"`
}

func (s *Server) apiPage(w http.ResponseWriter, r *http.Request) {
	st, e, ok := s.lookup(chi.URLParam(r, "area"), chi.URLParam(r, "slug"))
	if !ok {
		writeErr(w, http.StatusNotFound, "page not found")
		return
	}
	page, err := e.Load(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	nav := st.registry.Nav(e, page)
	resp := struct {
		Entry    entryJSON     `json:"entry"`
		Course   string        `json:"course"`
		Nav      navJSON       `json:"nav"`
		Children []entryJSON   `json:"children,omitempty"`
		Section  *sectionJSON  `json:"section,omitempty"`
		Exam     *catalog.Exam `json:"exam,omitempty"`
	}{
		Entry:  entryOf(e),
		Course: e.Course.Key,
		Nav:    navJSON{Back: nav.Back, Prev: nav.Prev, Next: nav.Next},
		Exam:   page.Exam,
	}
	if page.Section != nil {
		resp.Section = sectionOf(page.Section)
	}
	if t := st.registry.Table(e); t != nil {
		for _, c := range t.Children(e) {
			resp.Children = append(resp.Children, entryOf(c))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// entryPage resolves {area}/{slug} to a loaded page of the given kind.
func (s *Server) entryPage(w http.ResponseWriter, r *http.Request, kind routing.Kind) (*routing.Entry, *routing.Page, bool) {
	_, e, ok := s.lookup(chi.URLParam(r, "area"), chi.URLParam(r, "slug"))
	if !ok || e.Kind != kind {
		writeErr(w, http.StatusNotFound, string(kind)+" not found")
		return nil, nil, false
	}
	page, err := e.Load(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return nil, nil, false
	}
	return e, page, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

type checkRequest struct {
	LearnerID string `json:"learner_id"`
	Selected  *int   `json:"selected"`
}

func (s *Server) apiCheck(w http.ResponseWriter, r *http.Request) {
	e, page, ok := s.entryPage(w, r, routing.KindSection)
	if !ok {
		return
	}
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Selected == nil {
		writeErr(w, http.StatusBadRequest, "selected is required")
		return
	}

	learner := firstNonEmpty(req.LearnerID, learnerID(r))
	res, err := s.cfg.Quiz.CheckInline(r.Context(), learner, routeKey(e), page.Section, chi.URLParam(r, "checkID"), *req.Selected)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type answersRequest struct {
	LearnerID string         `json:"learner_id"`
	Answers   map[string]int `json:"answers"`
}

type scoredAttempt struct {
	Attempt *progress.Attempt `json:"attempt,omitempty"`
	Score   quiz.Score        `json:"score"`
}

func (s *Server) apiSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	e, page, ok := s.entryPage(w, r, routing.KindSection)
	if !ok {
		return
	}
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	if len(page.Section.Quiz.Questions) == 0 {
		writeErr(w, http.StatusNotFound, "this section has no quiz")
		return
	}

	learner := firstNonEmpty(req.LearnerID, learnerID(r))
	a, score, err := s.cfg.Quiz.SubmitQuiz(r.Context(), learner, routeKey(e), page.Section, req.Answers)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	status := http.StatusOK
	if a != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, scoredAttempt{Attempt: a, Score: score})
}

type examStarted struct {
	Attempt   *progress.Attempt `json:"attempt"`
	Questions []quiz.Prompt     `json:"questions"`
	TimeLimit int               `json:"time_limit_sec"`
}

func (s *Server) apiStartExam(w http.ResponseWriter, r *http.Request) {
	e, page, ok := s.entryPage(w, r, routing.KindExam)
	if !ok {
		return
	}
	var req struct {
		LearnerID string `json:"learner_id"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	learner := firstNonEmpty(req.LearnerID, learnerID(r))
	if learner == "" {
		writeErr(w, http.StatusBadRequest, "learner_id is required")
		return
	}

	a, qs, err := s.cfg.Quiz.StartExam(r.Context(), learner, routeKey(e), page.Exam)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, examStarted{Attempt: a, Questions: quiz.Prompts(qs), TimeLimit: page.Exam.TimeLimitSec})
}

func (s *Server) apiSubmitExam(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.cfg.Quiz.Attempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if !owns(firstNonEmpty(req.LearnerID, learnerID(r)), a) {
		writeErr(w, http.StatusForbidden, "attempt belongs to another learner")
		return
	}
	area, slug, _ := strings.Cut(a.Route, "/")
	_, e, ok := s.lookup(area, slug)
	if !ok || e.Kind != routing.KindExam {
		writeErr(w, http.StatusNotFound, "exam "+a.Route+" is no longer published")
		return
	}
	page, err := e.Load(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	done, score, err := s.cfg.Quiz.SubmitExam(r.Context(), a.ID, page.Exam, req.Answers)
	switch {
	case errors.Is(err, quiz.ErrExamExpired):
		writeJSON(w, http.StatusGone, struct {
			Error   string            `json:"error"`
			Attempt *progress.Attempt `json:"attempt"`
		}{Error: err.Error(), Attempt: done})
	case err != nil:
		writeDomainErr(w, err)
	default:
		writeJSON(w, http.StatusOK, scoredAttempt{Attempt: done, Score: score})
	}
}

func (s *Server) apiAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := s.cfg.Quiz.Attempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if !owns(learnerID(r), a) {
		writeErr(w, http.StatusForbidden, "attempt belongs to another learner")
		return
	}
	resp := struct {
		*progress.Attempt
		Remaining *int `json:"remaining_sec,omitempty"`
	}{Attempt: a}
	if a.Status == progress.StatusInProgress && a.Deadline != nil {
		left := max(0, int(time.Until(*a.Deadline).Seconds()))
		resp.Remaining = &left
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) apiLearnerAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	learner := chi.URLParam(r, "learnerID")
	if learnerID(r) != learner {
		writeErr(w, http.StatusForbidden, "attempts belong to another learner")
		return
	}
	list, err := s.cfg.Quiz.Attempts(r.Context(), learner, limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if list == nil {
		list = []progress.Attempt{}
	}
	writeJSON(w, http.StatusOK, struct {
		Attempts []progress.Attempt `json:"attempts"`
	}{Attempts: list})
}

// owns reports whether caller is the learner who started a. Anonymous callers
// own nothing.
func owns(caller string, a *progress.Attempt) bool {
	return caller != "" && caller == a.LearnerID
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
