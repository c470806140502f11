package screener

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Strategy locates the value for one label synonym in a parsed page.
// Implementations must not modify the document.
type Strategy interface {
	Name() string
	TryExtract(doc *goquery.Document, synonym string) (string, bool)
}

// AttributeMatch finds a label element anywhere in the page and reads the
// value next to it.
type AttributeMatch struct{}

// KeyMetricsBlock does the same search, limited to key-metric containers.
type KeyMetricsBlock struct{}

// TableRow scans table rows for a first cell containing the synonym.
type TableRow struct{}

// DefaultStrategies returns the strategies in dispatch order.
func DefaultStrategies() []Strategy {
	return []Strategy{AttributeMatch{}, KeyMetricsBlock{}, TableRow{}}
}

func (AttributeMatch) Name() string { return "attribute_match" }

func (AttributeMatch) TryExtract(doc *goquery.Document, synonym string) (string, bool) {
	label := findLabel(doc.Selection, synonym)
	if label.Length() == 0 {
		return "", false
	}
	return valueNear(label)
}

func (KeyMetricsBlock) Name() string { return "key_metrics_block" }

func (KeyMetricsBlock) TryExtract(doc *goquery.Document, synonym string) (string, bool) {
	var value string
	var found bool

	blocks := doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContains(s, "key-metric")
	})
	blocks.EachWithBreak(func(_ int, block *goquery.Selection) bool {
		label := findLabel(block, synonym)
		if label.Length() == 0 {
			return true
		}
		value, found = valueNear(label)
		return !found
	})

	return value, found
}

func (TableRow) Name() string { return "table_row" }

func (TableRow) TryExtract(doc *goquery.Document, synonym string) (string, bool) {
	needle := strings.ToLower(synonym)

	var value string
	var decided bool
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		if !containsWord(strings.ToLower(cleanText(cells.First())), needle) {
			return true
		}
		// The first matching row decides, even when its value is blank
		value = cleanText(cells.Eq(1))
		decided = true
		return false
	})

	if !decided || value == "" {
		return "", false
	}
	return value, true
}

// findLabel returns the first element in scope labelled with synonym: a
// matching data-name attribute, then a leaf span whose text starts with the
// synonym, then one whose text contains it. Span text must match whole
// words, so "Low" does not label "Free Cash Flow".
func findLabel(scope *goquery.Selection, synonym string) *goquery.Selection {
	needle := strings.ToLower(strings.TrimSpace(synonym))
	if needle == "" {
		return scope.Slice(0, 0)
	}

	byAttr := scope.Find("[data-name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("data-name")
		return strings.Contains(strings.ToLower(name), needle)
	}).First()
	if byAttr.Length() > 0 {
		return byAttr
	}

	leaves := scope.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0
	})

	byPrefix := leaves.FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(cleanText(s))
		return strings.HasPrefix(text, needle) && wordBoundaryAt(text, len(needle))
	}).First()
	if byPrefix.Length() > 0 {
		return byPrefix
	}

	return leaves.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return containsWord(strings.ToLower(cleanText(s)), needle)
	}).First()
}

// containsWord reports whether needle occurs in text without a letter or
// digit directly on either side
func containsWord(text, needle string) bool {
	if needle == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(needle); {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		if wordBoundaryAt(text, start) && wordBoundaryAt(text, start+len(needle)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// wordBoundaryAt reports whether the byte offset i in text does not split
// two word characters
func wordBoundaryAt(text string, i int) bool {
	if i <= 0 || i >= len(text) {
		return true
	}
	before, _ := utf8.DecodeLastRuneInString(text[:i])
	after, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(before) || !isWordRune(after)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// valueNear reads the first number/value-classed descendant of the label's
// parent, falling back to the parent's next element sibling.
func valueNear(label *goquery.Selection) (string, bool) {
	parent := label.Parent()
	if parent.Length() == 0 {
		return "", false
	}

	if v, ok := firstValue(parent); ok {
		return v, true
	}

	next := parent.Next()
	if next.Length() == 0 {
		return "", false
	}
	return firstValue(next)
}

func firstValue(scope *goquery.Selection) (string, bool) {
	node := scope.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContains(s, "number") || classContains(s, "value")
	}).First()
	if node.Length() == 0 {
		return "", false
	}

	text := cleanText(node)
	return text, text != ""
}

func classContains(s *goquery.Selection, fragment string) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(class), fragment)
}

// cleanText returns the selection text with whitespace runs collapsed
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
