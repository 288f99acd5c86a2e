package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/p-n-ai/study-centre/courses"
	"github.com/p-n-ai/study-centre/internal/catalog"
)

const testManifest = `key: demo
area: general-upskilling
title: Demo Course
modules:
  - number: 1
    title: Basics
    sections:
      - number: 1
        title: Intro
        file: m1/s1.yaml
      - number: 2
        title: Broken
        file: m1/s2.yaml
exam:
  file: exam.yaml
`

const testSection = `title: Intro
seo:
  title: Intro | Demo 1.1
  description: An introduction.
blocks:
  - title: First
    body: Body text.
    check: c1
inline_checks:
  - id: c1
    question: Pick b
    options: [a, b]
    correctIndex: 1
    explanation: It is b.
quiz:
  title: Section 1 Knowledge Check
  questions:
    - id: 1
      question: Pick a
      options: [a, b]
      correctAnswer: 0
      explanation: It is a.
`

const testExam = `id: demo
title: Demo Exam
total_questions: 2
time_limit_sec: 60
pass_threshold: 50
categories: [One, Two]
questions:
  - {id: 1, question: Q1, options: [a, b], answer: 0, explanation: E, category: One}
  - {id: 2, question: Q2, options: [a, b], answer: 1, explanation: E, category: Two}
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"demo/course.yaml": {Data: []byte(testManifest)},
		"demo/m1/s1.yaml":  {Data: []byte(testSection)},
		"demo/m1/s2.yaml":  {Data: []byte(strings.Replace(testSection, "correctIndex: 1", "correctIndex: 5", 1))},
		"demo/exam.yaml":   {Data: []byte(testExam)},
		"bad/course.yaml":  {Data: []byte("key: bad\narea: Not A Slug\ntitle: Bad\nmodules: []\n")},
	}
}

func TestOpen_SkipsInvalidManifests(t *testing.T) {
	cat, err := catalog.Open(testFS())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if got := len(cat.Courses()); got != 1 {
		t.Fatalf("Courses() = %d, want 1", got)
	}
	if _, ok := cat.Course("bad"); ok {
		t.Error("invalid manifest should be skipped")
	}
	if len(cat.Findings()) == 0 {
		t.Error("Findings() should report the skipped manifest")
	}

	course, ok := cat.Course("demo")
	if !ok {
		t.Fatal("Course(demo) not found")
	}
	if course.Dir != "demo" {
		t.Errorf("Dir = %q, want demo", course.Dir)
	}
	if course.Prefix() != "demo" {
		t.Errorf("Prefix() = %q, want demo", course.Prefix())
	}
}

func TestLoadSection(t *testing.T) {
	cat, err := catalog.Open(testFS())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	course, _ := cat.Course("demo")

	s, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[0])
	if err != nil {
		t.Fatalf("LoadSection() error = %v", err)
	}
	if s.SEO.Title != "Intro | Demo 1.1" {
		t.Errorf("SEO.Title = %q", s.SEO.Title)
	}
	check, ok := s.InlineCheck("c1")
	if !ok {
		t.Fatal("InlineCheck(c1) not found")
	}
	if check.Kind != catalog.KindInline || check.Answer != 1 {
		t.Errorf("inline check = %+v, want kind inline answer 1", check)
	}
	if q := s.Quiz.Questions[0]; q.Kind != catalog.KindQuiz || q.ID != "1" {
		t.Errorf("quiz question = %+v, want kind quiz id \"1\"", q)
	}
	if s.QuizPassThreshold() != catalog.DefaultPassThreshold {
		t.Errorf("QuizPassThreshold() = %d, want default", s.QuizPassThreshold())
	}
}

func TestLoadSection_InvalidAnswerIndex(t *testing.T) {
	cat, _ := catalog.Open(testFS())
	course, _ := cat.Course("demo")

	_, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[1])
	var ve *catalog.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("LoadSection() error = %v, want *ValidationError", err)
	}
	if !strings.Contains(ve.Error(), "out of range") {
		t.Errorf("error = %q, want answer range finding", ve.Error())
	}
}

func TestLoadSection_Missing(t *testing.T) {
	cat, _ := catalog.Open(testFS())
	course, _ := cat.Course("demo")

	_, err := cat.LoadSection(t.Context(), course, catalog.SectionRef{Number: "9", File: "m1/nope.yaml"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("LoadSection() error = %v, want ErrNotFound", err)
	}
}

func TestLoadSection_SchemaViolation(t *testing.T) {
	fsys := testFS()
	fsys["demo/m1/s1.yaml"] = &fstest.MapFile{Data: []byte("title: Intro\nblocks: []\n")}
	cat, _ := catalog.Open(fsys)
	course, _ := cat.Course("demo")

	_, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[0])
	findings := catalog.FindingsOf("demo/m1/s1.yaml", err)
	if len(findings) < 2 {
		t.Errorf("findings = %v, want missing seo and quiz reported", findings)
	}
}

func TestLoadSection_UnknownField(t *testing.T) {
	fsys := testFS()
	fsys["demo/m1/s1.yaml"] = &fstest.MapFile{Data: []byte(testSection + "sumary: []\n")}
	cat, _ := catalog.Open(fsys)
	course, _ := cat.Course("demo")

	if _, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[0]); err == nil {
		t.Fatal("LoadSection() should reject unknown top-level fields")
	}
}

func TestLoadSection_UnknownQuestionField(t *testing.T) {
	tests := []struct {
		name    string
		replace string
		with    string
	}{
		{"misspelled answer on inline check", "correctIndex: 1", "correctIndex: 1\n    corectIndex: 0"},
		{"misspelled difficulty on inline check", "correctIndex: 1", "correctIndex: 1\n    dificulty: hard"},
		{"unknown field on quiz question", "correctAnswer: 0", "correctAnswer: 0\n      hint: think"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := testFS()
			fsys["demo/m1/s1.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(testSection, tt.replace, tt.with, 1))}
			cat, _ := catalog.Open(fsys)
			course, _ := cat.Course("demo")

			_, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[0])
			var ve *catalog.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("LoadSection() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestLoadExam_UnknownQuestionField(t *testing.T) {
	fsys := testFS()
	fsys["demo/exam.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(testExam, "category: One}", "category: One, catgory: Two}", 1))}
	cat, _ := catalog.Open(fsys)
	course, _ := cat.Course("demo")

	if _, err := cat.LoadExam(t.Context(), course); err == nil {
		t.Fatal("LoadExam() should reject unknown question fields")
	}
}

func TestLoadExam(t *testing.T) {
	cat, _ := catalog.Open(testFS())
	course, _ := cat.Course("demo")

	exam, err := cat.LoadExam(t.Context(), course)
	if err != nil {
		t.Fatalf("LoadExam() error = %v", err)
	}
	if exam.TimeLimit().Seconds() != 60 {
		t.Errorf("TimeLimit() = %v, want 60s", exam.TimeLimit())
	}
	if q, ok := exam.Question("2"); !ok || q.Kind != catalog.KindExam {
		t.Errorf("Question(2) = %+v, %v", q, ok)
	}
}

func TestLoadExam_CategoryAndBankSize(t *testing.T) {
	fsys := testFS()
	fsys["demo/exam.yaml"] = &fstest.MapFile{Data: []byte(strings.NewReplacer(
		"total_questions: 2", "total_questions: 3",
		"category: Two", "category: Three",
	).Replace(testExam))}
	cat, _ := catalog.Open(fsys)
	course, _ := cat.Course("demo")

	_, err := cat.LoadExam(t.Context(), course)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	findings := catalog.FindingsOf("demo/exam.yaml", err)
	if len(findings) != 2 {
		t.Errorf("findings = %v (%s), want bank size and category", findings, msg)
	}
}

func TestLint(t *testing.T) {
	cat, _ := catalog.Open(testFS())
	findings := cat.Lint(t.Context())

	var sawSection, sawManifest bool
	for _, f := range findings {
		if f.File == "demo/m1/s2.yaml" {
			sawSection = true
		}
		if f.File == "bad/course.yaml" {
			sawManifest = true
		}
	}
	if !sawSection || !sawManifest {
		t.Errorf("Lint() = %v, want findings for bad manifest and broken section", findings)
	}
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	for name, f := range testFS() {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cat, err := catalog.OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	if _, ok := cat.Course("demo"); !ok {
		t.Error("Course(demo) not found")
	}

	if _, err := catalog.OpenDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("OpenDir() on a missing directory should fail")
	}
}

func TestShippedCatalogue_Lints(t *testing.T) {
	cat, err := catalog.Open(courses.FS)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(cat.Courses()) < 3 {
		t.Errorf("Courses() = %d, want at least 3", len(cat.Courses()))
	}
	for _, f := range cat.Lint(t.Context()) {
		t.Errorf("finding: %s", f)
	}
}

func TestShippedCatalogue_PowerFactorCheck(t *testing.T) {
	cat, _ := catalog.Open(courses.FS)
	course, ok := cat.Course("hnc")
	if !ok {
		t.Fatal("Course(hnc) not found")
	}
	s, err := cat.LoadSection(t.Context(), course, course.Modules[0].Sections[0])
	if err != nil {
		t.Fatalf("LoadSection() error = %v", err)
	}
	q, ok := s.InlineCheck("pf-calculation")
	if !ok {
		t.Fatal("InlineCheck(pf-calculation) not found")
	}
	if strings.Join(q.Options, ",") != "0.40,0.60,0.80,1.67" || q.Answer != 1 {
		t.Errorf("pf-calculation = %v answer %d", q.Options, q.Answer)
	}
}
