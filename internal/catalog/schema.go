package catalog

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// DocKind names a catalogue document type.
type DocKind string

const (
	DocCourse  DocKind = "course"
	DocSection DocKind = "section"
	DocExam    DocKind = "exam"
)

const questionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["id", "question", "options", "explanation"],
  "properties": {
    "id": {"type": ["string", "integer"]},
    "question": {"type": "string", "minLength": 1},
    "options": {"type": "array", "minItems": 2, "items": {"type": "string", "minLength": 1}},
    "answer": {"type": "integer", "minimum": 0},
    "correctAnswer": {"type": "integer", "minimum": 0},
    "correct_answer": {"type": "integer", "minimum": 0},
    "correctIndex": {"type": "integer", "minimum": 0},
    "correct_index": {"type": "integer", "minimum": 0},
    "explanation": {"type": "string", "minLength": 1},
    "category": {"type": "string"},
    "section": {"type": ["string", "number"]},
    "topic": {"type": "string"},
    "difficulty": {"type": "string"}
  },
  "anyOf": [
    {"required": ["answer"]},
    {"required": ["correctAnswer"]},
    {"required": ["correct_answer"]},
    {"required": ["correctIndex"]},
    {"required": ["correct_index"]}
  ]
}`

var schemaSources = map[DocKind]string{
	DocCourse: `{
  "type": "object",
  "required": ["key", "area", "title", "modules"],
  "properties": {
    "key": {"type": "string", "minLength": 1},
    "area": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "slug_prefix": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
    "modules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["number", "title", "sections"],
        "properties": {
          "number": {"type": "integer", "minimum": 1},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "slug": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
          "sections": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["number", "title", "file"],
              "properties": {
                "number": {"type": ["string", "number"]},
                "title": {"type": "string", "minLength": 1},
                "file": {"type": "string", "minLength": 1},
                "slug": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"}
              }
            }
          }
        }
      }
    },
    "exam": {
      "type": "object",
      "required": ["file"],
      "properties": {
        "file": {"type": "string", "minLength": 1},
        "slug": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"}
      }
    }
  }
}`,
	DocSection: `{
  "type": "object",
  "required": ["title", "seo", "blocks", "quiz"],
  "definitions": {"question": ` + questionSchema + `},
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "subtitle": {"type": "string"},
    "seo": {
      "type": "object",
      "required": ["title", "description"],
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "description": {"type": "string", "minLength": 1}
      }
    },
    "summary": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["heading", "points"],
        "properties": {
          "heading": {"type": "string", "minLength": 1},
          "points": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "outcomes": {"type": "array", "items": {"type": "string"}},
    "blocks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "body"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "body": {"type": "string", "minLength": 1},
          "check": {"type": "string"}
        }
      }
    },
    "inline_checks": {"type": "array", "items": {"$ref": "#/definitions/question"}},
    "faqs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "answer"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "answer": {"type": "string", "minLength": 1}
        }
      }
    },
    "quiz": {
      "type": "object",
      "required": ["title", "questions"],
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "pass_threshold": {"type": "integer", "minimum": 1, "maximum": 100},
        "questions": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/question"}}
      }
    },
    "prev": {"type": "string"},
    "next": {"type": "string"}
  }
}`,
	DocExam: `{
  "type": "object",
  "required": ["id", "title", "total_questions", "time_limit_sec", "pass_threshold", "categories", "questions"],
  "definitions": {"question": ` + questionSchema + `},
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "total_questions": {"type": "integer", "minimum": 1},
    "time_limit_sec": {"type": "integer", "minimum": 1},
    "pass_threshold": {"type": "integer", "minimum": 1, "maximum": 100},
    "categories": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "questions": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/question"}}
  }
}`,
}

var (
	schemasOnce sync.Once
	schemas     map[DocKind]*gojsonschema.Schema
	schemasErr  error
)

func compiledSchemas() (map[DocKind]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[DocKind]*gojsonschema.Schema, len(schemaSources))
		for kind, src := range schemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemasErr = fmt.Errorf("compiling %s schema: %w", kind, err)
				return
			}
			schemas[kind] = s
		}
	})
	return schemas, schemasErr
}

// ValidateShape checks a YAML document against the JSON Schema for kind.
// Each schema violation becomes one Finding.
func ValidateShape(kind DocKind, file string, data []byte) ([]Finding, error) {
	all, err := compiledSchemas()
	if err != nil {
		return nil, err
	}
	schema, ok := all[kind]
	if !ok {
		return nil, fmt.Errorf("no schema for %q", kind)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []Finding{{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}}, nil
	}
	if doc == nil {
		return []Finding{{File: file, Message: "empty document"}}, nil
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", file, err)
	}
	if res.Valid() {
		return nil, nil
	}

	findings := make([]Finding, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		findings = append(findings, Finding{
			File:    file,
			Path:    e.Field(),
			Message: e.Description(),
		})
	}
	return findings, nil
}
