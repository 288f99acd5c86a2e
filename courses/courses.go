// Package courses embeds the default course catalogue.
package courses

import "embed"

// FS holds one directory per course, each with a course.yaml manifest.
//
//go:embed */*.yaml */*/*.yaml
var FS embed.FS
