// Package extract finds candidate localization keys in loosely-structured
// Confluence HTML: recognized table columns yield direct candidates, and a
// free-text camelCase heuristic yields uncertain ones when no table matches.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lolikgiovi/lockey/pkg/errors"
)

// Status is the confidence tier assigned to an extracted candidate.
type Status string

const (
	StatusPlain     Status = "plain"     // taken from a recognized column, no strikethrough
	StatusStriked   Status = "striked"   // taken from a recognized column, struck through
	StatusUncertain Status = "uncertain" // inferred from free-form text
)

// Candidate is one extracted localization key, pre-deduplication.
type Candidate struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
}

// headerVariants are the accepted column names denoting "this column holds
// localization keys". Matched case-insensitively as substrings of the
// normalized header text.
var headerVariants = []string{
	"localization key",
	"localizationkey",
	"loc key",
	"loc_key",
	"lockey",
}

// camelKeyPattern accepts standalone camelCase identifiers: lowercase start,
// at least one uppercase hump, letters and digits only. Plain lowercase
// words are ordinary prose, not keys. Dots are rejected separately so the
// two causes stay distinguishable.
var camelKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9]*[A-Z][a-zA-Z0-9]*$`)

// IsCamelKey reports whether text is acceptable as a standalone lockey.
func IsCamelKey(text string) bool {
	if strings.Contains(text, ".") {
		return false
	}
	return camelKeyPattern.MatchString(text)
}

// Extract parses an HTML fragment and returns candidates: direct ones from
// recognized table columns first, then uncertain ones from the free-text
// heuristic when no table anywhere (nested included) carries a lockey
// column. The result is not deduplicated.
func Extract(fragment string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageParse, "failed to parse HTML fragment")
	}

	var direct []Candidate
	columnFound := false

	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		cands, ok := extractFromTable(tbl)
		if ok {
			columnFound = true
			direct = append(direct, cands...)
		}
	})

	if columnFound {
		return direct, nil
	}

	// No lockey column anywhere: fall back to the inline heuristic over the
	// fragment's plain text. An empty result is not an error (the caller
	// decides how to surface "no table found").
	var uncertain []Candidate
	for _, key := range ScanInlineKeys(doc.Text()) {
		uncertain = append(uncertain, Candidate{Key: key, Status: StatusUncertain})
	}
	return uncertain, nil
}

// extractFromTable inspects one table's own header row for a lockey column
// and extracts that column's cells. Rows and cells belonging to nested
// tables are left for their own table's pass, so the innermost match wins.
func extractFromTable(tbl *goquery.Selection) ([]Candidate, bool) {
	rows := tbl.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Closest("table").IsSelection(tbl)
	})

	colIndex := -1
	var out []Candidate

	rows.Each(func(_ int, row *goquery.Selection) {
		headers := row.ChildrenFiltered("th")
		if colIndex == -1 && headers.Length() > 0 {
			headers.EachWithBreak(func(i int, th *goquery.Selection) bool {
				if isLockeyHeader(th.Text()) {
					colIndex = i
					return false
				}
				return true
			})
			return // header row carries no data cells
		}
		if colIndex == -1 {
			return
		}

		cells := row.ChildrenFiltered("td")
		if colIndex >= cells.Length() {
			return
		}
		out = append(out, extractFromCell(cells.Eq(colIndex))...)
	})

	return out, colIndex != -1
}

func isLockeyHeader(text string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	for _, variant := range headerVariants {
		if strings.Contains(normalized, variant) {
			return true
		}
	}
	return false
}

// extractFromCell pulls candidates from a data cell. Confluence authors
// stack several keys as paragraphs inside one cell, so each paragraph is
// considered on its own; a cell without paragraphs is taken whole.
func extractFromCell(cell *goquery.Selection) []Candidate {
	units := cell.Find("p")
	if units.Length() == 0 {
		units = cell
	}

	var out []Candidate
	units.Each(func(_ int, unit *goquery.Selection) {
		text := strings.TrimSpace(unit.Text())
		if text == "" {
			return
		}
		// template placeholders like __PLACEHOLDER__ are not keys
		if strings.HasPrefix(text, "__") && strings.HasSuffix(text, "__") {
			return
		}
		if !IsCamelKey(text) {
			return
		}
		status := StatusPlain
		if isStriked(unit) {
			status = StatusStriked
		}
		out = append(out, Candidate{Key: text, Status: status})
	})
	return out
}

// isStriked reports whether the unit's content is wrapped in strikethrough
// markup: a strike element or an inline line-through style, on the unit
// itself, a descendant, or an ancestor inside the cell. Color styling alone
// never affects status.
func isStriked(unit *goquery.Selection) bool {
	if unit.Find("s, strike, del").Length() > 0 || hasLineThroughDescendant(unit) {
		return true
	}
	if len(unit.Nodes) == 0 {
		return false
	}
	for node := unit.Nodes[0]; node != nil; node = node.Parent {
		if node.Type != html.ElementNode {
			continue
		}
		switch node.Data {
		case "s", "strike", "del":
			return true
		}
		if nodeHasLineThrough(node) {
			return true
		}
		if node.Data == "table" {
			break // stay within the candidate's own table
		}
	}
	return false
}

func nodeHasLineThrough(node *html.Node) bool {
	for _, attr := range node.Attr {
		if attr.Key == "style" && styleHasLineThrough(attr.Val) {
			return true
		}
	}
	return false
}

func hasLineThroughDescendant(unit *goquery.Selection) bool {
	found := false
	unit.Find("[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if styleHasLineThrough(style) {
			found = true
			return false
		}
		return true
	})
	return found
}

func styleHasLineThrough(style string) bool {
	style = strings.ToLower(style)
	if !strings.Contains(style, "line-through") {
		return false
	}
	// the declaration must be text-decoration, not e.g. a color token
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.Contains(strings.TrimSpace(name), "text-decoration") &&
			strings.Contains(value, "line-through") {
			return true
		}
	}
	return false
}
