package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Finding is one content problem found while loading or linting.
type Finding struct {
	File    string `json:"file"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	if f.Path == "" {
		return fmt.Sprintf("%s: %s", f.File, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.File, f.Path, f.Message)
}

// ValidationError carries every finding for a document that failed validation.
type ValidationError struct {
	File     string
	Findings []Finding
}

func (e *ValidationError) Error() string {
	if len(e.Findings) == 1 {
		return "invalid content: " + e.Findings[0].String()
	}
	return fmt.Sprintf("invalid content: %s: %d problems, first: %s", e.File, len(e.Findings), e.Findings[0].String())
}

// FindingsOf extracts findings from err, or wraps err as a single finding.
func FindingsOf(file string, err error) []Finding {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Findings
	}
	return []Finding{{File: file, Message: err.Error()}}
}

// SortFindings orders findings by file, then path.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].File != fs[j].File {
			return fs[i].File < fs[j].File
		}
		return fs[i].Path < fs[j].Path
	})
}

// Validate checks the answer index, options and explanation of one question.
func (q Question) Validate() []string {
	var problems []string
	if strings.TrimSpace(q.ID) == "" {
		problems = append(problems, "missing id")
	}
	if strings.TrimSpace(q.Text) == "" {
		problems = append(problems, "missing question text")
	}
	if len(q.Options) < 2 {
		problems = append(problems, fmt.Sprintf("needs at least 2 options, has %d", len(q.Options)))
	}
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		problems = append(problems, fmt.Sprintf("answer %d out of range for %d options", q.Answer, len(q.Options)))
	}
	seen := make(map[string]bool, len(q.Options))
	for i, opt := range q.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			problems = append(problems, fmt.Sprintf("option %d is empty", i))
			continue
		}
		if seen[key] {
			problems = append(problems, fmt.Sprintf("option %q is duplicated", opt))
		}
		seen[key] = true
	}
	if strings.TrimSpace(q.Explanation) == "" {
		problems = append(problems, "missing explanation")
	}
	return problems
}

func validateQuestions(file, path string, qs []Question, ids map[string]string) []Finding {
	var out []Finding
	for i, q := range qs {
		qpath := fmt.Sprintf("%s[%d]", path, i)
		for _, p := range q.Validate() {
			out = append(out, Finding{File: file, Path: qpath, Message: p})
		}
		if q.ID == "" {
			continue
		}
		if prev, dup := ids[q.ID]; dup {
			out = append(out, Finding{File: file, Path: qpath, Message: fmt.Sprintf("id %q already used at %s", q.ID, prev)})
			continue
		}
		ids[q.ID] = qpath
	}
	return out
}

// Validate checks a section's questions and inline check placement.
func (s *Section) Validate(file string) []Finding {
	ids := make(map[string]string)
	out := validateQuestions(file, "inline_checks", s.InlineChecks, ids)
	out = append(out, validateQuestions(file, "quiz.questions", s.Quiz.Questions, ids)...)

	placed := make(map[string]int)
	for i, b := range s.Blocks {
		if b.Check == "" {
			continue
		}
		if _, ok := s.InlineCheck(b.Check); !ok {
			out = append(out, Finding{File: file, Path: fmt.Sprintf("blocks[%d].check", i),
				Message: fmt.Sprintf("inline check %q does not exist", b.Check)})
			continue
		}
		placed[b.Check]++
	}
	for i, q := range s.InlineChecks {
		switch n := placed[q.ID]; {
		case n == 0:
			out = append(out, Finding{File: file, Path: fmt.Sprintf("inline_checks[%d]", i),
				Message: fmt.Sprintf("inline check %q is not placed after any block", q.ID)})
		case n > 1:
			out = append(out, Finding{File: file, Path: fmt.Sprintf("inline_checks[%d]", i),
				Message: fmt.Sprintf("inline check %q is placed %d times", q.ID, n)})
		}
	}
	for _, link := range []struct{ path, v string }{{"prev", s.Prev}, {"next", s.Next}} {
		if link.v != "" && !strings.HasPrefix(link.v, "../") {
			out = append(out, Finding{File: file, Path: link.path,
				Message: fmt.Sprintf("link %q must be relative to the area (../slug)", link.v)})
		}
	}
	return out
}

// Validate checks exam settings against its question bank.
func (e *Exam) Validate(file string) []Finding {
	var out []Finding
	if e.PassThreshold < 1 || e.PassThreshold > 100 {
		out = append(out, Finding{File: file, Path: "pass_threshold", Message: fmt.Sprintf("must be 1-100, got %d", e.PassThreshold)})
	}
	if e.TotalQuestions > len(e.Questions) {
		out = append(out, Finding{File: file, Path: "total_questions",
			Message: fmt.Sprintf("bank has %d questions, exam needs %d", len(e.Questions), e.TotalQuestions)})
	}

	cats := make(map[string]bool, len(e.Categories))
	for i, c := range e.Categories {
		if cats[c] {
			out = append(out, Finding{File: file, Path: fmt.Sprintf("categories[%d]", i), Message: fmt.Sprintf("category %q duplicated", c)})
		}
		cats[c] = true
	}

	out = append(out, validateQuestions(file, "questions", e.Questions, make(map[string]string))...)
	for i, q := range e.Questions {
		if !cats[q.Category] {
			out = append(out, Finding{File: file, Path: fmt.Sprintf("questions[%d].category", i),
				Message: fmt.Sprintf("category %q is not one of the exam categories", q.Category)})
		}
	}
	return out
}

// Validate checks module and section numbering and slug overrides.
func (c *Course) Validate(file string) []Finding {
	var out []Finding
	if !IsSlug(c.Area) {
		out = append(out, Finding{File: file, Path: "area", Message: fmt.Sprintf("%q is not a slug", c.Area)})
	}
	if !IsSlug(c.Prefix()) {
		out = append(out, Finding{File: file, Path: "slug_prefix", Message: fmt.Sprintf("%q is not a slug", c.Prefix())})
	}

	modules := make(map[int]bool)
	files := make(map[string]string)
	for i, m := range c.Modules {
		mpath := fmt.Sprintf("modules[%d]", i)
		if modules[m.Number] {
			out = append(out, Finding{File: file, Path: mpath, Message: fmt.Sprintf("module number %d duplicated", m.Number)})
		}
		modules[m.Number] = true
		if m.Slug != "" && !IsSlug(m.Slug) {
			out = append(out, Finding{File: file, Path: mpath + ".slug", Message: fmt.Sprintf("%q is not a slug", m.Slug)})
		}

		sections := make(map[string]bool)
		for j, s := range m.Sections {
			spath := fmt.Sprintf("%s.sections[%d]", mpath, j)
			if s.Number == "" {
				out = append(out, Finding{File: file, Path: spath, Message: "missing section number"})
			} else if sections[s.Number] {
				out = append(out, Finding{File: file, Path: spath, Message: fmt.Sprintf("section number %s duplicated", s.Number)})
			}
			sections[s.Number] = true
			if s.Slug != "" && !IsSlug(s.Slug) {
				out = append(out, Finding{File: file, Path: spath + ".slug", Message: fmt.Sprintf("%q is not a slug", s.Slug)})
			}
			if prev, dup := files[s.File]; dup {
				out = append(out, Finding{File: file, Path: spath + ".file", Message: fmt.Sprintf("file %q already used at %s", s.File, prev)})
			}
			files[s.File] = spath
		}
	}
	if c.Exam != nil && c.Exam.Slug != "" && !IsSlug(c.Exam.Slug) {
		out = append(out, Finding{File: file, Path: "exam.slug", Message: fmt.Sprintf("%q is not a slug", c.Exam.Slug)})
	}
	return out
}
