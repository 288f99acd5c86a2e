package routing

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/study-centre/internal/catalog"
)

// Area groups the course tables mounted under one /study-centre/{area} router.
type Area struct {
	Name    string
	Tables  []*Table
	entries map[string]*Entry
}

// Lookup returns the entry for slug within the area.
func (a *Area) Lookup(slug string) (*Entry, bool) {
	e, ok := a.entries[slug]
	return e, ok
}

// Registry composes every course table. Slugs are unique within an area.
type Registry struct {
	areas map[string]*Area
	names []string
}

// NewRegistry groups tables by area and rejects duplicate slugs.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{areas: make(map[string]*Area)}
	for _, t := range tables {
		a, ok := r.areas[t.Course.Area]
		if !ok {
			a = &Area{Name: t.Course.Area, entries: make(map[string]*Entry)}
			r.areas[a.Name] = a
			r.names = append(r.names, a.Name)
		}
		for _, e := range t.Entries {
			if prev, dup := a.entries[e.Slug]; dup {
				return nil, fmt.Errorf("area %s: %q used by %s and %s: %w",
					a.Name, e.Slug, prev.Course.Key, e.Course.Key, ErrDuplicateSlug)
			}
			a.entries[e.Slug] = e
		}
		a.Tables = append(a.Tables, t)
	}
	sort.Strings(r.names)
	return r, nil
}

// Build creates a table for every course in the catalogue.
func Build(cat *catalog.Catalog, opts Options) (*Registry, error) {
	var tables []*Table
	for _, course := range cat.Courses() {
		t, err := BuildTable(cat, course, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return NewRegistry(tables...)
}

// Areas returns the area names in sorted order.
func (r *Registry) Areas() []*Area {
	out := make([]*Area, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.areas[n])
	}
	return out
}

// Area returns an area by name.
func (r *Registry) Area(name string) (*Area, bool) {
	a, ok := r.areas[name]
	return a, ok
}

// Lookup finds the entry for a path's area and slug.
func (r *Registry) Lookup(area, slug string) (*Entry, bool) {
	a, ok := r.areas[area]
	if !ok {
		return nil, false
	}
	return a.Lookup(slug)
}

// Table returns the table that owns e.
func (r *Registry) Table(e *Entry) *Table {
	a, ok := r.areas[e.Area]
	if !ok {
		return nil
	}
	for _, t := range a.Tables {
		if t.Course == e.Course {
			return t
		}
	}
	return nil
}

// Entries returns every entry, area by area, in table order.
func (r *Registry) Entries() []*Entry {
	var out []*Entry
	for _, a := range r.Areas() {
		for _, t := range a.Tables {
			out = append(out, t.Entries...)
		}
	}
	return out
}

// Mount registers one sub-router per area below /study-centre. bindArea (may
// be nil) receives each area router; bindEntry receives a router scoped to the
// entry's path.
func (r *Registry) Mount(router chi.Router, bindArea func(chi.Router, *Area), bindEntry func(chi.Router, *Entry)) {
	router.Route(StudyCentre, func(sc chi.Router) {
		for _, a := range r.Areas() {
			sc.Route("/"+a.Name, func(ar chi.Router) {
				if bindArea != nil {
					bindArea(ar, a)
				}
				for _, t := range a.Tables {
					for _, e := range t.Entries {
						ar.Route("/"+e.Slug, func(er chi.Router) {
							bindEntry(er, e)
						})
					}
				}
			})
		}
	})
}

// Link is a navigation target.
type Link struct {
	Path  string
	Label string
	Title string
}

// Nav holds the back and previous/next links of a page.
type Nav struct {
	Back *Link
	Prev *Link
	Next *Link
}

func linkTo(e *Entry) *Link {
	return &Link{Path: e.Path(), Label: e.Label(), Title: e.Title}
}

// Nav computes navigation for e. Prev/next follow table order unless the
// loaded section overrides them with a sibling link.
func (r *Registry) Nav(e *Entry, page *Page) Nav {
	t := r.Table(e)
	if t == nil {
		return Nav{}
	}

	var nav Nav
	switch e.Kind {
	case KindSection:
		nav.Back = r.moduleLink(t, e.Module)
	case KindModule, KindExam:
		nav.Back = linkTo(t.Entries[0])
	}
	if e.index > 0 {
		nav.Prev = linkTo(t.Entries[e.index-1])
	}
	if e.index+1 < len(t.Entries) {
		nav.Next = linkTo(t.Entries[e.index+1])
	}

	if page != nil && page.Section != nil {
		if l, ok := r.override(e, page.Section.Prev); ok {
			nav.Prev = l
		}
		if l, ok := r.override(e, page.Section.Next); ok {
			nav.Next = l
		}
	}
	return nav
}

func (r *Registry) moduleLink(t *Table, m *catalog.ModuleRef) *Link {
	for _, e := range t.Entries {
		if e.Kind == KindModule && e.Module == m {
			return linkTo(e)
		}
	}
	return nil
}

func (r *Registry) override(e *Entry, link string) (*Link, bool) {
	if link == "" {
		return nil, false
	}
	slug, ok := ResolveRelative(link)
	if !ok {
		return nil, false
	}
	target, ok := r.Lookup(e.Area, slug)
	if !ok {
		return nil, false
	}
	return linkTo(target), true
}

// CheckLinks loads every section and reports prev/next overrides that do not
// resolve to a route in the same area. Load failures are left to catalog lint.
func (r *Registry) CheckLinks(ctx context.Context) []catalog.Finding {
	var out []catalog.Finding
	for _, e := range r.Entries() {
		if e.Kind != KindSection {
			continue
		}
		page, err := e.Load(ctx)
		if err != nil {
			continue
		}
		file := path.Join(e.Course.Dir, e.Ref.File)
		for _, l := range []struct{ field, v string }{{"prev", page.Section.Prev}, {"next", page.Section.Next}} {
			if l.v == "" {
				continue
			}
			slug, ok := ResolveRelative(l.v)
			if !ok {
				out = append(out, catalog.Finding{File: file, Path: l.field, Message: fmt.Sprintf("link %q is not a sibling link", l.v)})
				continue
			}
			if _, ok := r.Lookup(e.Area, slug); !ok {
				out = append(out, catalog.Finding{File: file, Path: l.field,
					Message: fmt.Sprintf("link %q does not resolve to a route in %s", l.v, e.Area)})
			}
		}
	}
	return out
}
