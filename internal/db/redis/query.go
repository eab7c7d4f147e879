package redis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
)

// Field paths map to index attributes by replacing "." with "_": "name.text" -> @name_text.
// Attributes ending in "_text" (and the tag store's "tag") are TEXT, everything else is TAG.

var errEmptyGroup = errors.New("query group has no clauses")

// renderQuery translates a query tree into FT.SEARCH DIALECT 2 syntax.
func renderQuery(n query.Node) (string, error) {
	if n == nil {
		return "", errors.New("query is required")
	}
	switch q := n.(type) {
	case query.MatchAll:
		return "*", nil
	case query.Term:
		return weighted(renderTerm(q), q.Boost), nil
	case query.Match:
		return renderMatch(q)
	case query.Phrase:
		if q.Field == "" || strings.TrimSpace(q.Text) == "" {
			return "", errors.New("phrase requires field and text")
		}
		return weighted(fmt.Sprintf(`@%s:"%s"`, attribute(q.Field), escapeWords(q.Text)), q.Boost), nil
	case query.Fuzzy:
		if q.Field == "" || q.Term == "" {
			return "", errors.New("fuzzy requires field and term")
		}
		return fmt.Sprintf("@%s:(%s)", attribute(q.Field), fuzzyTerm(q.Term)), nil
	case query.Prefix:
		if q.Field == "" || q.Value == "" {
			return "", errors.New("prefix requires field and value")
		}
		return fmt.Sprintf("@%s:(%s*)", attribute(q.Field), escapeQuery(q.Value)), nil
	case query.DisMax:
		return renderDisMax(q)
	case query.And:
		return renderAnd(q)
	default:
		return "", fmt.Errorf("unsupported query node %T", n)
	}
}

func renderTerm(t query.Term) string {
	attr := attribute(t.Field)
	if isTextAttribute(attr) {
		return fmt.Sprintf("@%s:(%s)", attr, escapeWords(t.Value))
	}
	return fmt.Sprintf("@%s:{%s}", attr, tagEscaper.Replace(t.Value))
}

// renderMatch ORs terms over fields. Text attributes share one multi-field clause;
// tag attributes get one exact clause each.
func renderMatch(m query.Match) (string, error) {
	if len(m.Fields) == 0 || len(m.Terms) == 0 {
		return "", errors.New("match requires fields and terms")
	}

	var textAttrs, parts []string
	for _, f := range m.Fields {
		attr := attribute(f)
		if isTextAttribute(attr) {
			textAttrs = append(textAttrs, attr)
			continue
		}
		tags := make([]string, len(m.Terms))
		for i, t := range m.Terms {
			tags[i] = tagEscaper.Replace(t)
		}
		parts = append(parts, fmt.Sprintf("@%s:{%s}", attr, strings.Join(tags, " | ")))
	}
	if len(textAttrs) > 0 {
		words := make([]string, len(m.Terms))
		for i, t := range m.Terms {
			words[i] = escapeWords(t)
		}
		text := fmt.Sprintf("@%s:(%s)", strings.Join(textAttrs, "|"), strings.Join(words, " | "))
		parts = append([]string{text}, parts...)
	}

	out := parts[0]
	if len(parts) > 1 {
		out = "(" + strings.Join(parts, " | ") + ")"
	}
	return weighted(out, m.Boost), nil
}

// renderDisMax emits a weighted union. FT.SEARCH sums union scores, so the tie-breaker is
// approximated: the highest-boost clause keeps its weight, the others are scaled by it.
func renderDisMax(d query.DisMax) (string, error) {
	if len(d.Clauses) == 0 {
		return "", errEmptyGroup
	}

	best, bestBoost := 0, boostOf(d.Clauses[0])
	for i := 1; i < len(d.Clauses); i++ {
		if b := boostOf(d.Clauses[i]); b > bestBoost {
			best, bestBoost = i, b
		}
	}

	parts := make([]string, 0, len(d.Clauses))
	for i, c := range d.Clauses {
		s, err := renderQuery(c)
		if err != nil {
			return "", err
		}
		if i != best && d.TieBreaker > 0 && d.TieBreaker < 1 {
			s = weighted(s, d.TieBreaker)
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " | ") + ")", nil
}

func renderAnd(a query.And) (string, error) {
	if len(a.Clauses) == 0 {
		return "", errEmptyGroup
	}
	parts := make([]string, 0, len(a.Clauses))
	for _, c := range a.Clauses {
		s, err := renderQuery(c)
		if err != nil {
			return "", err
		}
		if s == "*" {
			continue
		}
		parts = append(parts, "("+s+")")
	}
	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, " "), nil
}

func boostOf(n query.Node) float64 {
	switch q := n.(type) {
	case query.Term:
		return normBoost(q.Boost)
	case query.Match:
		return normBoost(q.Boost)
	case query.Phrase:
		return normBoost(q.Boost)
	case query.DisMax:
		best := 0.0
		for _, c := range q.Clauses {
			best = max(best, boostOf(c))
		}
		return best
	default:
		return 1
	}
}

func normBoost(b float64) float64 {
	if b <= 0 {
		return 1
	}
	return b
}

// weighted attaches a $weight attribute unless the boost is neutral.
func weighted(clause string, boost float64) string {
	if boost <= 0 || boost == 1 {
		return clause
	}
	return fmt.Sprintf("(%s) => { $weight: %s; }", clause, strconv.FormatFloat(boost, 'f', -1, 64))
}

func fuzzyTerm(term string) string {
	escaped := escapeQuery(strings.ToLower(term))
	switch query.AutoFuzziness(term) {
	case 0:
		return escaped
	case 1:
		return "%" + escaped + "%"
	default:
		return "%%" + escaped + "%%"
	}
}

func attribute(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}

func isTextAttribute(attr string) bool {
	return attr == "tag" || strings.HasSuffix(attr, "_text")
}

// escapeWords escapes every word of s, keeping word boundaries.
func escapeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = escapeQuery(w)
	}
	return strings.Join(words, " ")
}

// --- Escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
)
