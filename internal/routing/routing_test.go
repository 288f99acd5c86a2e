package routing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/study-centre/courses"
	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/lazy"
	"github.com/p-n-ai/study-centre/internal/routing"
)

type fakeSource struct {
	calls    atomic.Int32
	sections map[string]*catalog.Section
	fail     error
}

func (f *fakeSource) LoadSection(_ context.Context, _ *catalog.Course, ref catalog.SectionRef) (*catalog.Section, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	if s, ok := f.sections[ref.File]; ok {
		return s, nil
	}
	return &catalog.Section{Title: ref.Title}, nil
}

func (f *fakeSource) LoadExam(context.Context, *catalog.Course) (*catalog.Exam, error) {
	f.calls.Add(1)
	return &catalog.Exam{ID: "exam"}, nil
}

func fastOptions() routing.Options {
	return routing.Options{Policy: lazy.Policy{Attempts: 2, Timeout: time.Second, Backoff: time.Millisecond}}
}

func fireSafety() *catalog.Course {
	return &catalog.Course{
		Key:   "fire-safety",
		Area:  "general-upskilling",
		Title: "Fire Safety",
		Modules: []catalog.ModuleRef{
			{Number: 1, Title: "Understanding Fire", Sections: []catalog.SectionRef{
				{Number: "1", Title: "The Fire Triangle", File: "m1/s1.yaml"},
				{Number: "2", Title: "The Classes of Fire", File: "m1/s2.yaml"},
			}},
			{Number: 2, Title: "Prevention", Sections: []catalog.SectionRef{
				{Number: "1", Title: "Ignition Sources", File: "m2/s1.yaml"},
			}},
		},
		Exam: &catalog.ExamRef{File: "exam.yaml"},
	}
}

func TestBuildTable_DefaultSlugs(t *testing.T) {
	table, err := routing.BuildTable(&fakeSource{}, fireSafety(), fastOptions())
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}

	want := []struct {
		slug string
		kind routing.Kind
	}{
		{"fire-safety", routing.KindCourse},
		{"fire-safety-module-1", routing.KindModule},
		{"fire-safety-module-1-section-1", routing.KindSection},
		{"fire-safety-module-1-section-2", routing.KindSection},
		{"fire-safety-module-2", routing.KindModule},
		{"fire-safety-module-2-section-1", routing.KindSection},
		{"fire-safety-mock-exam", routing.KindExam},
	}
	if len(table.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d", len(table.Entries), len(want))
	}
	for i, w := range want {
		e := table.Entries[i]
		if e.Slug != w.slug || e.Kind != w.kind {
			t.Errorf("Entries[%d] = %s (%s), want %s (%s)", i, e.Slug, e.Kind, w.slug, w.kind)
		}
	}
	if got := table.Entries[2].Path(); got != "/study-centre/general-upskilling/fire-safety-module-1-section-1" {
		t.Errorf("Path() = %q", got)
	}
}

func TestBuildTable_SlugOverrides(t *testing.T) {
	course := &catalog.Course{
		Key: "hnc", Area: "apprentice-courses", Title: "HNC",
		Modules: []catalog.ModuleRef{{Number: 3, Title: "Energy", Slug: "hnc-module3-section6", Sections: []catalog.SectionRef{
			{Number: "6.3", Title: "Power Factor", File: "a.yaml", Slug: "hnc-module3-section6-3"},
			{Number: "6.4", Title: "Motors", File: "b.yaml"},
		}}},
	}
	table, err := routing.BuildTable(&fakeSource{}, course, fastOptions())
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	if _, ok := table.Lookup("hnc-module3-section6-3"); !ok {
		t.Error("override slug not registered")
	}
	if _, ok := table.Lookup("hnc-module-3-section-6-4"); !ok {
		t.Error("dotted section number should become hyphenated default slug")
	}
}

func TestBuildTable_DuplicateSlug(t *testing.T) {
	course := fireSafety()
	course.Modules[0].Sections[1].Slug = "fire-safety-module-1-section-1"

	_, err := routing.BuildTable(&fakeSource{}, course, fastOptions())
	if !errors.Is(err, routing.ErrDuplicateSlug) {
		t.Fatalf("BuildTable() error = %v, want ErrDuplicateSlug", err)
	}
}

func TestNewRegistry_DuplicateSlugAcrossCourses(t *testing.T) {
	a, _ := routing.BuildTable(&fakeSource{}, fireSafety(), fastOptions())
	other := fireSafety()
	other.Key = "fire-safety-refresher"
	b, _ := routing.BuildTable(&fakeSource{}, other, fastOptions())

	if _, err := routing.NewRegistry(a, b); !errors.Is(err, routing.ErrDuplicateSlug) {
		t.Fatalf("NewRegistry() error = %v, want ErrDuplicateSlug", err)
	}

	other.Area = "apprentice-courses"
	c, _ := routing.BuildTable(&fakeSource{}, other, fastOptions())
	if _, err := routing.NewRegistry(a, c); err != nil {
		t.Errorf("same slug in another area should be allowed: %v", err)
	}
}

func TestEntry_LoadIsLazyAndShared(t *testing.T) {
	src := &fakeSource{}
	table, _ := routing.BuildTable(src, fireSafety(), fastOptions())
	if src.calls.Load() != 0 {
		t.Fatalf("BuildTable() loaded %d documents, want 0", src.calls.Load())
	}

	e, _ := table.Lookup("fire-safety-module-1-section-2")
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Load(context.Background()); err != nil {
				t.Errorf("Load() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1", src.calls.Load())
	}
	if !e.Ready() {
		t.Error("Ready() = false after Load")
	}
}

func TestEntry_ContentErrorsAreNotRetried(t *testing.T) {
	src := &fakeSource{fail: &catalog.ValidationError{File: "m1/s1.yaml", Findings: []catalog.Finding{{File: "m1/s1.yaml", Message: "bad"}}}}
	table, _ := routing.BuildTable(src, fireSafety(), fastOptions())
	e, _ := table.Lookup("fire-safety-module-1-section-1")

	_, err := e.Load(t.Context())
	var loadErr *lazy.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want *lazy.LoadError", err)
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1", src.calls.Load())
	}
}

func TestEntry_TransientErrorsAreRetried(t *testing.T) {
	src := &fakeSource{fail: errors.New("disk busy")}
	table, _ := routing.BuildTable(src, fireSafety(), fastOptions())
	e, _ := table.Lookup("fire-safety-module-1-section-1")

	if _, err := e.Load(t.Context()); err == nil {
		t.Fatal("Load() should fail")
	}
	if src.calls.Load() != 2 {
		t.Errorf("source calls = %d, want 2 attempts", src.calls.Load())
	}
}

func TestRegistry_Nav(t *testing.T) {
	src := &fakeSource{sections: map[string]*catalog.Section{
		"m2/s1.yaml": {Title: "Ignition Sources", Prev: "../fire-safety-module-1-section-2", Next: "../does-not-exist"},
	}}
	table, _ := routing.BuildTable(src, fireSafety(), fastOptions())
	reg, err := routing.NewRegistry(table)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	s1, _ := reg.Lookup("general-upskilling", "fire-safety-module-1-section-1")
	nav := reg.Nav(s1, nil)
	if nav.Back == nil || nav.Back.Path != "/study-centre/general-upskilling/fire-safety-module-1" {
		t.Errorf("Back = %+v, want module 1", nav.Back)
	}
	if nav.Back.Label != "Module 1" {
		t.Errorf("Back.Label = %q, want Module 1", nav.Back.Label)
	}
	if nav.Next == nil || nav.Next.Title != "The Classes of Fire" {
		t.Errorf("Next = %+v, want section 2", nav.Next)
	}

	course, _ := reg.Lookup("general-upskilling", "fire-safety")
	if nav := reg.Nav(course, nil); nav.Back != nil || nav.Prev != nil {
		t.Errorf("course nav = %+v, want no back or prev", nav)
	}
	exam, _ := reg.Lookup("general-upskilling", "fire-safety-mock-exam")
	if nav := reg.Nav(exam, nil); nav.Next != nil || nav.Back == nil {
		t.Errorf("exam nav = %+v, want back and no next", nav)
	}

	m2s1, _ := reg.Lookup("general-upskilling", "fire-safety-module-2-section-1")
	page, err := m2s1.Load(t.Context())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	nav = reg.Nav(m2s1, page)
	if nav.Prev == nil || nav.Prev.Path != "/study-centre/general-upskilling/fire-safety-module-1-section-2" {
		t.Errorf("Prev = %+v, want override", nav.Prev)
	}
	if nav.Next == nil || nav.Next.Path != "/study-centre/general-upskilling/fire-safety-mock-exam" {
		t.Errorf("Next = %+v, want table order when override is dangling", nav.Next)
	}

	findings := reg.CheckLinks(t.Context())
	if len(findings) != 1 || findings[0].Path != "next" {
		t.Errorf("CheckLinks() = %v, want one dangling next link", findings)
	}
}

func TestRegistry_Mount(t *testing.T) {
	table, _ := routing.BuildTable(&fakeSource{}, fireSafety(), fastOptions())
	reg, _ := routing.NewRegistry(table)

	r := chi.NewRouter()
	reg.Mount(r,
		func(ar chi.Router, a *routing.Area) {
			ar.Get("/", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("area:" + a.Name)) })
		},
		func(er chi.Router, e *routing.Entry) {
			er.Get("/", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(e.Slug)) })
		},
	)

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/study-centre/general-upskilling/fire-safety-module-1-section-2", http.StatusOK, "fire-safety-module-1-section-2"},
		{"/study-centre/general-upskilling/fire-safety", http.StatusOK, "fire-safety"},
		{"/study-centre/general-upskilling", http.StatusOK, "area:general-upskilling"},
		{"/study-centre/general-upskilling/fire-safety-module-9", http.StatusNotFound, ""},
		{"/study-centre/apprentice-courses/fire-safety", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		link string
		want string
		ok   bool
	}{
		{"../ei-module-1-section-2", "ei-module-1-section-2", true},
		{"ei-module-1-section-2", "", false},
		{"../", "", false},
		{"../../x", "", false},
		{"../a/b", "", false},
	}
	for _, tt := range tests {
		got, ok := routing.ResolveRelative(tt.link)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveRelative(%q) = %q, %v; want %q, %v", tt.link, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := routing.PagePath("general-upskilling", "ei-module-1"); got != "/study-centre/general-upskilling/ei-module-1" {
		t.Errorf("PagePath() = %q", got)
	}
	if got := routing.CheckPath("apprentice-courses", "hnc-module3-section6-3", "pf-calculation"); got != "/study-centre/apprentice-courses/hnc-module3-section6-3/checks/pf-calculation" {
		t.Errorf("CheckPath() = %q", got)
	}
}

func TestShippedCatalogue_RoutesAndLinks(t *testing.T) {
	cat, err := catalog.Open(courses.FS)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	reg, err := routing.Build(cat, fastOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, e := range reg.Entries() {
		page, err := e.Load(t.Context())
		if err != nil {
			t.Errorf("%s: Load() error = %v", e.Path(), err)
			continue
		}
		nav := reg.Nav(e, page)
		for _, l := range []*routing.Link{nav.Back, nav.Prev, nav.Next} {
			if l == nil {
				continue
			}
			found := false
			for _, other := range reg.Entries() {
				if other.Path() == l.Path {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s: link %s does not resolve", e.Path(), l.Path)
			}
		}
	}
	for _, f := range reg.CheckLinks(t.Context()) {
		t.Errorf("finding: %s", f)
	}

	if _, ok := reg.Lookup("apprentice-courses", "hnc-module3-section6-3"); !ok {
		t.Error("hnc-module3-section6-3 not routed")
	}
	if _, ok := reg.Lookup("general-upskilling", "ei-module-1-section-2"); !ok {
		t.Error("ei-module-1-section-2 not routed")
	}
}
