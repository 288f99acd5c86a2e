// Package report builds the content audit for a catalogue: every route, every
// question and every finding, exportable as an XLSX workbook.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/routing"
)

// Sheet names, in workbook order.
const (
	SheetRoutes    = "Routes"
	SheetQuestions = "Questions"
	SheetFindings  = "Findings"
)

// RouteRow is one served page.
type RouteRow struct {
	Area   string
	Course string
	Slug   string
	Path   string
	Kind   routing.Kind
	Label  string
	Title  string
	Loaded bool
}

// QuestionRow is one inline check, quiz question or exam question.
type QuestionRow struct {
	Route    string
	Source   string // "inline", "quiz" or "exam"
	ID       string
	Question string
	Options  int
	Answer   string
	Category string
}

// Audit is the result of Build.
type Audit struct {
	Routes    []RouteRow
	Questions []QuestionRow
	Findings  []catalog.Finding
}

// Build loads every route in reg and collects catalogue lint findings and
// dangling navigation links.
func Build(ctx context.Context, cat *catalog.Catalog, reg *routing.Registry) *Audit {
	a := &Audit{Findings: cat.Lint(ctx)}
	a.Findings = append(a.Findings, reg.CheckLinks(ctx)...)
	catalog.SortFindings(a.Findings)

	for _, e := range reg.Entries() {
		page, err := e.Load(ctx)
		a.Routes = append(a.Routes, RouteRow{
			Area:   e.Area,
			Course: e.Course.Key,
			Slug:   e.Slug,
			Path:   e.Path(),
			Kind:   e.Kind,
			Label:  e.Label(),
			Title:  e.Title,
			Loaded: err == nil,
		})
		if err != nil {
			continue
		}
		route := e.Area + "/" + e.Slug
		if sec := page.Section; sec != nil {
			a.addQuestions(route, "inline", sec.InlineChecks)
			a.addQuestions(route, "quiz", sec.Quiz.Questions)
		}
		if page.Exam != nil {
			a.addQuestions(route, "exam", page.Exam.Questions)
		}
	}
	return a
}

func (a *Audit) addQuestions(route, source string, qs []catalog.Question) {
	for _, q := range qs {
		a.Questions = append(a.Questions, QuestionRow{
			Route:    route,
			Source:   source,
			ID:       q.ID,
			Question: q.Text,
			Options:  len(q.Options),
			Answer:   q.CorrectOption(),
			Category: q.Category,
		})
	}
}

// OK reports whether the audit found no problems.
func (a *Audit) OK() bool { return len(a.Findings) == 0 }

// Workbook renders the audit as a three-sheet workbook. The caller closes it.
func (a *Audit) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRoutes); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming default sheet: %w", err)
	}
	for _, name := range []string{SheetQuestions, SheetFindings} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	routes := [][]any{{"Area", "Course", "Slug", "Path", "Kind", "Label", "Title", "Loaded"}}
	for _, r := range a.Routes {
		routes = append(routes, []any{r.Area, r.Course, r.Slug, r.Path, string(r.Kind), r.Label, r.Title, r.Loaded})
	}
	questions := [][]any{{"Route", "Source", "ID", "Question", "Options", "Answer", "Category"}}
	for _, q := range a.Questions {
		questions = append(questions, []any{q.Route, q.Source, q.ID, q.Question, q.Options, q.Answer, q.Category})
	}
	findings := [][]any{{"File", "Path", "Message"}}
	for _, fd := range a.Findings {
		findings = append(findings, []any{fd.File, fd.Path, fd.Message})
	}

	for _, s := range []struct {
		name  string
		rows  [][]any
		width float64
	}{
		{SheetRoutes, routes, 28},
		{SheetQuestions, questions, 36},
		{SheetFindings, findings, 48},
	} {
		if err := writeSheet(f, s.name, s.rows, header, s.width); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int, width float64) error {
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+1), &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return fmt.Errorf("naming %s columns: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", last, width); err != nil {
		return fmt.Errorf("sizing %s columns: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}

// WriteXLSX writes the audit workbook to w.
func (a *Audit) WriteXLSX(w io.Writer) error {
	f, err := a.Workbook()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
