// Package testutil provides shared rapid generators and the live suite
// fixture for e2e tests.
package testutil

import "pgregory.net/rapid"

// =============================================================================
// Note Generators
// =============================================================================

// NoteTitleGenerator generates valid note titles (non-empty strings).
func NoteTitleGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{4,49}`)
}

// NoteContentGenerator generates plain note bodies (can be empty).
func NoteContentGenerator() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(""),
		rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,200}`),
	)
}

// NoteHTMLGenerator wraps generated content in the editor's paragraph markup.
func NoteHTMLGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		paragraphs := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ]{0,40}`), 1, 4).Draw(t, "paragraphs")
		html := ""
		for _, p := range paragraphs {
			html += "<p>" + p + "</p>"
		}
		return html
	})
}

// NoteTagsGenerator generates a small set of distinct tags.
func NoteTagsGenerator() *rapid.Generator[[]string] {
	return rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3,12}`), 0, 4, rapid.ID[string])
}

// NoteSearchTermGenerator generates valid search terms.
func NoteSearchTermGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z]{4,15}`)
}
