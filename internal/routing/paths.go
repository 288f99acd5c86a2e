package routing

import (
	"net/url"
	"strings"
)

const (
	StudyCentre       = "/study-centre"
	StudyCentrePrefix = StudyCentre + "/"
	PagePattern       = StudyCentrePrefix + "{area}/{slug}"
	ChecksSegment     = "checks"
)

// PagePath returns the canonical path of a page.
func PagePath(area, slug string) string {
	return StudyCentrePrefix + url.PathEscape(area) + "/" + url.PathEscape(slug)
}

// CheckPath returns the form target for an inline check on a page.
func CheckPath(area, slug, checkID string) string {
	return PagePath(area, slug) + "/" + ChecksSegment + "/" + url.PathEscape(checkID)
}

// ResolveRelative turns a content link such as "../ei-module-1-section-2"
// into a slug. Only single-level sibling links are accepted.
func ResolveRelative(link string) (string, bool) {
	slug, ok := strings.CutPrefix(link, "../")
	if !ok || slug == "" || strings.ContainsAny(slug, "/?#") {
		return "", false
	}
	return slug, true
}
