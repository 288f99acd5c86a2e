package catalog

import "time"

// Kind distinguishes where a question is used.
type Kind string

const (
	KindQuiz   Kind = "quiz"   // end-of-section quiz
	KindInline Kind = "inline" // knowledge check placed between content blocks
	KindExam   Kind = "exam"   // mock exam bank
)

// Question is the single record type behind quizzes, inline checks and exam banks.
type Question struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
	Category    string   `json:"category,omitempty"`
	Section     string   `json:"section,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// FAQ is a question/answer pair. List order is display order.
type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// SEO is the document metadata for a page.
type SEO struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// SummaryBox is one highlighted summary ("In 30 Seconds", "For Electricians").
type SummaryBox struct {
	Heading string   `yaml:"heading" json:"heading"`
	Points  []string `yaml:"points" json:"points"`
}

// Block is one numbered content section of a page.
type Block struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
	Check string `yaml:"check,omitempty" json:"check,omitempty"` // inline check id shown after the block
}

// Anchor returns the fragment id used for the block heading.
func (b Block) Anchor() string { return Slugify(b.Title) }

// Quiz is the end-of-section knowledge check.
type Quiz struct {
	Title         string     `yaml:"title" json:"title"`
	PassThreshold int        `yaml:"pass_threshold,omitempty" json:"pass_threshold"`
	Questions     []Question `yaml:"questions" json:"questions"`
}

// DefaultPassThreshold applies to section quizzes that do not set one.
const DefaultPassThreshold = 80

// Section is one routed content page.
type Section struct {
	Title        string       `yaml:"title" json:"title"`
	Subtitle     string       `yaml:"subtitle" json:"subtitle,omitempty"`
	SEO          SEO          `yaml:"seo" json:"seo"`
	Summary      []SummaryBox `yaml:"summary" json:"summary,omitempty"`
	Outcomes     []string     `yaml:"outcomes" json:"outcomes,omitempty"`
	Blocks       []Block      `yaml:"blocks" json:"blocks"`
	InlineChecks []Question   `yaml:"inline_checks" json:"inline_checks,omitempty"`
	FAQs         []FAQ        `yaml:"faqs" json:"faqs,omitempty"`
	Quiz         Quiz         `yaml:"quiz" json:"quiz"`
	Prev         string       `yaml:"prev,omitempty" json:"prev,omitempty"` // relative link override, e.g. ../ei-module-1-section-1
	Next         string       `yaml:"next,omitempty" json:"next,omitempty"`
}

// InlineCheck returns the inline check with the given id.
func (s *Section) InlineCheck(id string) (Question, bool) {
	for _, q := range s.InlineChecks {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// QuizPassThreshold returns the quiz pass mark in percent.
func (s *Section) QuizPassThreshold() int {
	if s.Quiz.PassThreshold > 0 {
		return s.Quiz.PassThreshold
	}
	return DefaultPassThreshold
}

// Course is a course group manifest (course.yaml).
type Course struct {
	Key         string      `yaml:"key" json:"key"`
	Area        string      `yaml:"area" json:"area"`
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description" json:"description,omitempty"`
	SlugPrefix  string      `yaml:"slug_prefix,omitempty" json:"slug_prefix"`
	Modules     []ModuleRef `yaml:"modules" json:"modules"`
	Exam        *ExamRef    `yaml:"exam,omitempty" json:"exam,omitempty"`

	// Dir is the manifest's directory within the catalogue filesystem.
	Dir string `yaml:"-" json:"-"`
}

// Prefix returns the slug prefix, defaulting to the slugified key.
func (c *Course) Prefix() string {
	if c.SlugPrefix != "" {
		return c.SlugPrefix
	}
	return Slugify(c.Key)
}

// ModuleRef lists a module's sections.
type ModuleRef struct {
	Number      int          `yaml:"number" json:"number"`
	Title       string       `yaml:"title" json:"title"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Slug        string       `yaml:"slug,omitempty" json:"slug,omitempty"`
	Sections    []SectionRef `yaml:"sections" json:"sections"`
}

// SectionRef points at a section file relative to the course directory.
type SectionRef struct {
	Number string `yaml:"number" json:"number"` // "1", or dotted like "6.3"
	Title  string `yaml:"title" json:"title"`
	File   string `yaml:"file" json:"file"`
	Slug   string `yaml:"slug,omitempty" json:"slug,omitempty"`
}

// ExamRef points at the course's mock exam file.
type ExamRef struct {
	File string `yaml:"file" json:"file"`
	Slug string `yaml:"slug,omitempty" json:"slug,omitempty"`
}

// Exam is a mock exam configuration with its question bank.
type Exam struct {
	ID             string     `yaml:"id" json:"id"`
	Title          string     `yaml:"title" json:"title"`
	Description    string     `yaml:"description,omitempty" json:"description,omitempty"`
	TotalQuestions int        `yaml:"total_questions" json:"total_questions"`
	TimeLimitSec   int        `yaml:"time_limit_sec" json:"time_limit_sec"`
	PassThreshold  int        `yaml:"pass_threshold" json:"pass_threshold"`
	Categories     []string   `yaml:"categories" json:"categories"`
	Questions      []Question `yaml:"questions" json:"-"`
}

// TimeLimit returns the time allowed for one attempt.
func (e *Exam) TimeLimit() time.Duration {
	return time.Duration(e.TimeLimitSec) * time.Second
}

// Question returns the bank question with the given id.
func (e *Exam) Question(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
