// Package routing builds the lazy route tables that map study-centre slugs to
// course content, and mounts them on a chi router.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/lazy"
)

// ErrDuplicateSlug is returned when two entries would share a path.
var ErrDuplicateSlug = errors.New("duplicate slug")

// Kind is the type of page behind an entry.
type Kind string

const (
	KindCourse  Kind = "course"
	KindModule  Kind = "module"
	KindSection Kind = "section"
	KindExam    Kind = "exam"
)

// Source reads section and exam documents. *catalog.Catalog implements it.
type Source interface {
	LoadSection(ctx context.Context, course *catalog.Course, ref catalog.SectionRef) (*catalog.Section, error)
	LoadExam(ctx context.Context, course *catalog.Course) (*catalog.Exam, error)
}

// Page is the loaded content behind an entry. Course and module entries have
// neither a section nor an exam.
type Page struct {
	Section *catalog.Section
	Exam    *catalog.Exam
}

// Entry is one routable page of a course table.
type Entry struct {
	Slug   string
	Area   string
	Kind   Kind
	Title  string
	Course *catalog.Course
	Module *catalog.ModuleRef  // module and section entries
	Ref    *catalog.SectionRef // section entries

	index  int
	loader *lazy.Loader[*Page]
}

// Path returns the entry's canonical URL path.
func (e *Entry) Path() string { return PagePath(e.Area, e.Slug) }

// Name identifies the entry in logs and load errors.
func (e *Entry) Name() string { return e.Course.Key + "/" + e.Slug }

// Load returns the entry's content, loading it on first use.
func (e *Entry) Load(ctx context.Context) (*Page, error) { return e.loader.Get(ctx) }

// Ready reports whether the content is already loaded.
func (e *Entry) Ready() bool { return e.loader.Ready() }

// Options configures the loaders of a table.
type Options struct {
	Policy  lazy.Policy
	Tracker lazy.Tracker
}

// Table is the ordered route list of one course: overview, then each module
// followed by its sections, then the mock exam.
type Table struct {
	Course  *catalog.Course
	Entries []*Entry
	bySlug  map[string]*Entry
}

// Lookup returns the entry for slug.
func (t *Table) Lookup(slug string) (*Entry, bool) {
	e, ok := t.bySlug[slug]
	return e, ok
}

// Children returns the modules of a course entry or the sections of a module entry.
func (t *Table) Children(parent *Entry) []*Entry {
	var out []*Entry
	for _, e := range t.Entries {
		switch {
		case parent.Kind == KindCourse && e.Kind == KindModule:
			out = append(out, e)
		case parent.Kind == KindModule && e.Kind == KindSection && e.Module == parent.Module:
			out = append(out, e)
		}
	}
	return out
}

// CourseSlug is the default slug of a course overview.
func CourseSlug(prefix string) string { return prefix }

// ModuleSlug is the default slug of a module overview, e.g. "ei-module-1".
func ModuleSlug(prefix string, module int) string {
	return fmt.Sprintf("%s-module-%d", prefix, module)
}

// SectionSlug is the default slug of a section; dotted numbers become hyphens.
func SectionSlug(prefix string, module int, section string) string {
	return fmt.Sprintf("%s-module-%d-section-%s", prefix, module, catalog.Slugify(section))
}

func ExamSlug(prefix string) string { return prefix + "-mock-exam" }

// BuildTable produces the route table for course. Nothing is loaded until an
// entry's Load is called.
func BuildTable(src Source, course *catalog.Course, opts Options) (*Table, error) {
	if opts.Policy.Attempts == 0 {
		opts.Policy = lazy.DefaultPolicy()
	}
	t := &Table{Course: course, bySlug: make(map[string]*Entry)}
	prefix := course.Prefix()

	add := func(e *Entry, load func(context.Context) (*Page, error)) error {
		if prev, dup := t.bySlug[e.Slug]; dup {
			return fmt.Errorf("course %s: %q used by %s %q and %s %q: %w",
				course.Key, e.Slug, prev.Kind, prev.Title, e.Kind, e.Title, ErrDuplicateSlug)
		}
		e.Area = course.Area
		e.Course = course
		e.index = len(t.Entries)
		e.loader = lazy.New(e.Name(), load, lazy.WithPolicy(opts.Policy), lazy.WithTracker(opts.Tracker))
		t.Entries = append(t.Entries, e)
		t.bySlug[e.Slug] = e
		return nil
	}
	static := func(context.Context) (*Page, error) { return &Page{}, nil }

	if err := add(&Entry{Slug: CourseSlug(prefix), Kind: KindCourse, Title: course.Title}, static); err != nil {
		return nil, err
	}
	for i := range course.Modules {
		m := &course.Modules[i]
		slug := m.Slug
		if slug == "" {
			slug = ModuleSlug(prefix, m.Number)
		}
		if err := add(&Entry{Slug: slug, Kind: KindModule, Title: m.Title, Module: m}, static); err != nil {
			return nil, err
		}

		for j := range m.Sections {
			ref := &m.Sections[j]
			slug := ref.Slug
			if slug == "" {
				slug = SectionSlug(prefix, m.Number, ref.Number)
			}
			load := func(ctx context.Context) (*Page, error) {
				s, err := src.LoadSection(ctx, course, *ref)
				if err != nil {
					return nil, classify(err)
				}
				return &Page{Section: s}, nil
			}
			if err := add(&Entry{Slug: slug, Kind: KindSection, Title: ref.Title, Module: m, Ref: ref}, load); err != nil {
				return nil, err
			}
		}
	}
	if course.Exam != nil {
		slug := course.Exam.Slug
		if slug == "" {
			slug = ExamSlug(prefix)
		}
		load := func(ctx context.Context) (*Page, error) {
			e, err := src.LoadExam(ctx, course)
			if err != nil {
				return nil, classify(err)
			}
			return &Page{Exam: e}, nil
		}
		if err := add(&Entry{Slug: slug, Kind: KindExam, Title: course.Title + " Mock Exam"}, load); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// classify marks content errors that a retry cannot fix.
func classify(err error) error {
	var ve *catalog.ValidationError
	if errors.As(err, &ve) || errors.Is(err, catalog.ErrNotFound) {
		return lazy.Permanent(err)
	}
	return err
}

// Label is the short heading used in navigation, e.g. "Module 2" or "Section 6.3".
func (e *Entry) Label() string {
	switch e.Kind {
	case KindModule:
		return fmt.Sprintf("Module %d", e.Module.Number)
	case KindSection:
		return "Section " + e.Ref.Number
	case KindExam:
		return "Mock Exam"
	default:
		return strings.TrimSpace(e.Course.Title)
	}
}
