package pages

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a JavaScript regular expression literal body, used where a
// locator matches accessible names or text by regex.
type Pattern string

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func (p Pattern) literal() string {
	return "/" + strings.ReplaceAll(string(p), "/", `\/`) + "/"
}

// Matches reports whether text matches the pattern. Go and JavaScript agree on
// every pattern used here.
func (p Pattern) Matches(text string) bool {
	return regexp.MustCompile(string(p)).MatchString(text)
}

// Role selects by ARIA role and accessible name. The name matches as a
// case-insensitive substring, like getByRole.
func Role(role, name string) string {
	if name == "" {
		return "role=" + role
	}
	return fmt.Sprintf("role=%s[name=%s]", role, quote(name))
}

// RoleMatching selects by ARIA role and an accessible name pattern.
func RoleMatching(role string, name Pattern) string {
	return fmt.Sprintf("role=%s[name=%s]", role, name.literal())
}

// HeadingLevel selects headings of the given level.
func HeadingLevel(level int) string {
	return fmt.Sprintf("role=heading[level=%d]", level)
}

// TestID selects by data-testid.
func TestID(id string) string {
	return "data-testid=" + id
}

// Text selects by visible text as a case-insensitive substring.
func Text(text string) string {
	return "text=" + text
}

// ExactText selects elements whose full text equals text.
func ExactText(text string) string {
	return "text=" + quote(text)
}

// TextMatching selects by a visible text pattern.
func TextMatching(p Pattern) string {
	return "text=" + p.literal()
}

// HasText narrows a CSS selector to elements containing text.
func HasText(css, text string) string {
	return fmt.Sprintf("%s:has-text(%s)", css, quote(text))
}

// HasTextMatching narrows a CSS selector to elements with a descendant whose
// text matches p.
func HasTextMatching(css string, p Pattern) string {
	return fmt.Sprintf("%s:has(:text-matches(%s))", css, quote(string(p)))
}
