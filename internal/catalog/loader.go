// Package catalog loads course manifests, section pages and mock exams from
// YAML and checks them before anything is rendered.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// ManifestName is the file that marks a course directory.
const ManifestName = "course.yaml"

// ErrNotFound is returned when a course, section or exam does not exist.
var ErrNotFound = errors.New("not found")

// Catalog holds every valid course manifest of a catalogue filesystem.
// Section and exam documents are read on demand.
type Catalog struct {
	fsys     fs.FS
	courses  map[string]*Course
	findings []Finding
}

// OpenDir opens a catalogue stored in a directory.
func OpenDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening catalogue: %s is not a directory", dir)
	}
	return Open(os.DirFS(dir))
}

// Open walks fsys for course manifests. Invalid manifests are skipped and
// reported through Findings.
func Open(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		fsys:    fsys,
		courses: make(map[string]*Course),
	}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ManifestName {
			return nil
		}
		return c.loadCourse(p)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalogue: %w", err)
	}

	slog.Info("catalogue loaded", "courses", len(c.courses), "findings", len(c.findings))
	return c, nil
}

func (c *Catalog) loadCourse(p string) error {
	data, err := fs.ReadFile(c.fsys, p)
	if err != nil {
		return err
	}

	var course Course
	if err := decode(DocCourse, p, data, &course); err != nil {
		slog.Warn("skipping invalid course manifest", "path", p, "error", err)
		c.findings = append(c.findings, FindingsOf(p, err)...)
		return nil
	}
	if findings := course.Validate(p); len(findings) > 0 {
		slog.Warn("skipping invalid course manifest", "path", p, "problems", len(findings))
		c.findings = append(c.findings, findings...)
		return nil
	}
	if existing, dup := c.courses[course.Key]; dup {
		c.findings = append(c.findings, Finding{File: p, Path: "key",
			Message: fmt.Sprintf("course key %q already defined in %s", course.Key, path.Join(existing.Dir, ManifestName))})
		return nil
	}

	course.Dir = path.Dir(p)
	c.courses[course.Key] = &course
	return nil
}

// FS returns the catalogue filesystem.
func (c *Catalog) FS() fs.FS { return c.fsys }

// Courses returns all courses ordered by area, then key.
func (c *Catalog) Courses() []*Course {
	out := make([]*Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Course returns a course by key.
func (c *Catalog) Course(key string) (*Course, bool) {
	course, ok := c.courses[key]
	return course, ok
}

// Findings returns the problems found while opening the catalogue.
func (c *Catalog) Findings() []Finding {
	return append([]Finding(nil), c.findings...)
}

// LoadSection reads, decodes and validates one section document.
func (c *Catalog) LoadSection(ctx context.Context, course *Course, ref SectionRef) (*Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file := path.Join(course.Dir, ref.File)
	data, err := c.read(file)
	if err != nil {
		return nil, err
	}

	var s Section
	if err := decode(DocSection, file, data, &s); err != nil {
		return nil, err
	}
	for i := range s.InlineChecks {
		s.InlineChecks[i].Kind = KindInline
	}
	for i := range s.Quiz.Questions {
		s.Quiz.Questions[i].Kind = KindQuiz
	}
	if findings := s.Validate(file); len(findings) > 0 {
		return nil, &ValidationError{File: file, Findings: findings}
	}
	return &s, nil
}

// LoadExam reads, decodes and validates a course's mock exam.
func (c *Catalog) LoadExam(ctx context.Context, course *Course) (*Exam, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if course.Exam == nil {
		return nil, fmt.Errorf("exam for %s: %w", course.Key, ErrNotFound)
	}
	file := path.Join(course.Dir, course.Exam.File)
	data, err := c.read(file)
	if err != nil {
		return nil, err
	}

	var e Exam
	if err := decode(DocExam, file, data, &e); err != nil {
		return nil, err
	}
	for i := range e.Questions {
		e.Questions[i].Kind = KindExam
	}
	if findings := e.Validate(file); len(findings) > 0 {
		return nil, &ValidationError{File: file, Findings: findings}
	}
	return &e, nil
}

func (c *Catalog) read(file string) ([]byte, error) {
	data, err := fs.ReadFile(c.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", file, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return data, nil
}

// decode checks data against the schema for kind, then decodes it strictly.
func decode(kind DocKind, file string, data []byte, out any) error {
	findings, err := ValidateShape(kind, file, data)
	if err != nil {
		return err
	}
	if len(findings) > 0 {
		return &ValidationError{File: file, Findings: findings}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &ValidationError{File: file, Findings: []Finding{{File: file, Message: err.Error()}}}
	}
	return nil
}

// Lint loads every section and exam the catalogue references and returns all
// findings, including those recorded by Open.
func (c *Catalog) Lint(ctx context.Context) []Finding {
	out := c.Findings()
	for _, course := range c.Courses() {
		for _, m := range course.Modules {
			for _, ref := range m.Sections {
				if _, err := c.LoadSection(ctx, course, ref); err != nil {
					out = append(out, FindingsOf(path.Join(course.Dir, ref.File), err)...)
				}
			}
		}
		if course.Exam != nil {
			if _, err := c.LoadExam(ctx, course); err != nil {
				out = append(out, FindingsOf(path.Join(course.Dir, course.Exam.File), err)...)
			}
		}
	}
	SortFindings(out)
	return out
}
