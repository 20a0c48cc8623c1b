package locator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Strategy is how a Criteria selects its root element.
type Strategy int

const (
	ByCSS Strategy = iota
	ByXPath
	ByRole
	ByText
	ByTitle
	ByPlaceholder
)

func (s Strategy) String() string {
	switch s {
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	case ByRole:
		return "role"
	case ByText:
		return "text"
	case ByTitle:
		return "title"
	case ByPlaceholder:
		return "placeholder"
	default:
		return "strategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// RefinementKind identifies a step applied after the root selection.
type RefinementKind int

const (
	// Descend selects matching descendants with a CSS or XPath selector.
	Descend RefinementKind = iota
	// FilterText keeps only elements containing the given text.
	FilterText
	// First keeps the first match.
	First
	// Nth keeps the match at Index.
	Nth
)

// Refinement narrows a selection.
type Refinement struct {
	Kind     RefinementKind
	Selector string
	Text     string
	Index    int
}

func (r Refinement) String() string {
	switch r.Kind {
	case Descend:
		return "css=" + r.Selector
	case FilterText:
		return "has-text=" + strconv.Quote(r.Text)
	case First:
		return "first"
	case Nth:
		return "nth=" + strconv.Itoa(r.Index)
	default:
		return "refinement(" + strconv.Itoa(int(r.Kind)) + ")"
	}
}

// Criteria is a declarative element selection. It holds no reference to the
// page: it is resolved against the live document on every operation.
type Criteria struct {
	Strategy Strategy

	// Value is the selector for CSS/XPath, the ARIA role for ByRole, and the
	// text for ByText, ByTitle and ByPlaceholder.
	Value string

	// Name is the accessible name used with ByRole.
	Name string

	// NamePattern matches the accessible name instead of Name.
	NamePattern *regexp.Regexp

	// Exact requires a whole-string, case-sensitive match of Name or Value.
	Exact bool

	// HasText restricts the root selection to elements containing the text.
	HasText string

	Chain []Refinement
}

// CSS selects with a CSS selector.
func CSS(selector string) Criteria {
	return Criteria{Strategy: ByCSS, Value: selector}
}

// XPath selects with an XPath expression.
func XPath(expr string) Criteria {
	return Criteria{Strategy: ByXPath, Value: expr}
}

// Role selects by ARIA role and accessible name (substring match).
func Role(role, name string) Criteria {
	return Criteria{Strategy: ByRole, Value: role, Name: name}
}

// RoleExact selects by ARIA role and exact accessible name.
func RoleExact(role, name string) Criteria {
	return Criteria{Strategy: ByRole, Value: role, Name: name, Exact: true}
}

// RolePattern selects by ARIA role with the accessible name matched by re.
func RolePattern(role string, re *regexp.Regexp) Criteria {
	return Criteria{Strategy: ByRole, Value: role, NamePattern: re}
}

// Text selects by visible text.
func Text(text string, exact bool) Criteria {
	return Criteria{Strategy: ByText, Value: text, Exact: exact}
}

// Title selects by the title attribute.
func Title(title string) Criteria {
	return Criteria{Strategy: ByTitle, Value: title}
}

// Placeholder selects inputs by placeholder text.
func Placeholder(text string) Criteria {
	return Criteria{Strategy: ByPlaceholder, Value: text}
}

// WithText restricts the root selection to elements containing text.
func (c Criteria) WithText(text string) Criteria {
	c.HasText = text
	return c
}

// Descend selects descendants matching selector.
func (c Criteria) Descend(selector string) Criteria {
	return c.refine(Refinement{Kind: Descend, Selector: selector})
}

// Filter keeps elements that contain text.
func (c Criteria) Filter(text string) Criteria {
	return c.refine(Refinement{Kind: FilterText, Text: text})
}

// First keeps the first match.
func (c Criteria) First() Criteria {
	return c.refine(Refinement{Kind: First})
}

// Nth keeps the match at index i (zero based).
func (c Criteria) Nth(i int) Criteria {
	return c.refine(Refinement{Kind: Nth, Index: i})
}

func (c Criteria) refine(r Refinement) Criteria {
	chain := make([]Refinement, len(c.Chain), len(c.Chain)+1)
	copy(chain, c.Chain)
	c.Chain = append(chain, r)
	return c
}

// Validate reports criteria that cannot be resolved.
func (c Criteria) Validate() error {
	if c.Value == "" {
		return fmt.Errorf("%s criteria: empty value", c.Strategy)
	}
	for _, r := range c.Chain {
		if r.Kind == Descend && r.Selector == "" {
			return fmt.Errorf("%s criteria: empty descend selector", c.Strategy)
		}
		if r.Kind == Nth && r.Index < 0 {
			return fmt.Errorf("%s criteria: negative index %d", c.Strategy, r.Index)
		}
	}
	return nil
}

// String renders the criteria in a selector-like form used in logs, errors
// and as a stable key.
func (c Criteria) String() string {
	var b strings.Builder
	b.WriteString(c.Strategy.String())
	b.WriteByte('=')

	switch c.Strategy {
	case ByRole:
		b.WriteString(c.Value)
		switch {
		case c.NamePattern != nil:
			fmt.Fprintf(&b, "[name=/%s/]", c.NamePattern.String())
		case c.Name != "":
			fmt.Fprintf(&b, "[name=%q", c.Name)
			if c.Exact {
				b.WriteString(" exact")
			}
			b.WriteByte(']')
		}
	case ByText, ByTitle, ByPlaceholder:
		b.WriteString(strconv.Quote(c.Value))
		if c.Exact {
			b.WriteString(" exact")
		}
	default:
		b.WriteString(c.Value)
	}

	if c.HasText != "" {
		fmt.Fprintf(&b, "[has-text=%q]", c.HasText)
	}
	for _, r := range c.Chain {
		b.WriteString(" >> ")
		b.WriteString(r.String())
	}
	return b.String()
}
