package pages

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// highlightReport describes where search hits sit in a document snapshot.
type highlightReport struct {
	// Hits counts innermost spans whose text contains the search term.
	Hits int

	// InField counts hits with an enclosing div whose text mentions the field.
	InField int

	// Stray holds the text of hits outside the field, for warnings.
	Stray []string
}

// AllInField reports whether there was at least one hit and every hit is in
// the field.
func (r highlightReport) AllInField() bool {
	return r.Hits > 0 && r.InField == r.Hits
}

// analyzeHighlights parses the viewer markup and locates spans containing
// search. Only enclosing divs inside the snapshot are considered, so the
// viewer's own chrome never counts as the field.
func analyzeHighlights(markup, search, field string) (highlightReport, error) {
	var report highlightReport
	if search == "" {
		return report, fmt.Errorf("empty search term")
	}

	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return report, fmt.Errorf("parse viewer markup: %w", err)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if isSpan(n) && strings.Contains(textOf(n), search) && !hasMatchingSpan(n, search) {
			report.Hits++
			if enclosedBy(n, field) {
				report.InField++
			} else {
				report.Stray = append(report.Stray, strings.TrimSpace(textOf(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return report, nil
}

func isSpan(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Span
}

// hasMatchingSpan reports whether a descendant span of n also contains search.
func hasMatchingSpan(n *html.Node, search string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isSpan(c) && strings.Contains(textOf(c), search) {
			return true
		}
		if hasMatchingSpan(c, search) {
			return true
		}
	}
	return false
}

func enclosedBy(n *html.Node, field string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Div && strings.Contains(textOf(p), field) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
