package dataset

import (
	"regexp"
	"strings"
)

var (
	snakeAcronym = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	snakeWord    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// SnakeCase converts catalog field names to snake_case: brandName -> brand_name,
// HTTPServer -> http_server. Names already in snake_case are unchanged. Tag field paths
// and product attribute keys both go through it so they line up in the index.
func SnakeCase(s string) string {
	s = snakeAcronym.ReplaceAllString(s, "${1}_${2}")
	s = snakeWord.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
