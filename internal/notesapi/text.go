package notesapi

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	// Block ends render as line breaks; keep the words apart.
	blockBreaks = strings.NewReplacer("</p>", "</p> ", "<br>", " ", "<br/>", " ", "</li>", "</li> ", "</h1>", "</h1> ", "</h2>", "</h2> ", "</h3>", "</h3> ")
)

// PlainText strips markup from a note description, giving the text a note
// card renders.
func PlainText(description string) string {
	text := textPolicy.Sanitize(blockBreaks.Replace(description))
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}
