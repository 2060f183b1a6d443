package pages

import (
	"github.com/playwright-community/playwright-go"
)

// NoteCard is one card in the notes list or in search results.
type NoteCard struct {
	Root          playwright.Locator
	TitleHeading  playwright.Locator
	BodyParagraph playwright.Locator
	DateParagraph playwright.Locator
	Checkbox      playwright.Locator
}

func NewNoteCard(root playwright.Locator) *NoteCard {
	at := inLocator(root)
	return &NoteCard{
		Root:          root,
		TitleHeading:  at(HeadingLevel(3)),
		BodyParagraph: at("p").First(),
		DateParagraph: at("p").Nth(1),
		Checkbox:      at(Role("checkbox", "")),
	}
}

// SearchControls are the search and tag filters above the notes list.
type SearchControls struct {
	SearchInput           playwright.Locator
	ClearSearchButton     playwright.Locator
	ClearTagsButton       playwright.Locator
	NotesDisplayedCounter playwright.Locator
}

// NotesDisplayedPattern matches the notes counter text.
const NotesDisplayedPattern Pattern = `^Notes displayed:`

func NewSearchControls(page playwright.Page) *SearchControls {
	at := inPage(page)
	return &SearchControls{
		SearchInput:           at(RoleMatching("textbox", "Search")),
		ClearSearchButton:     at(Role("button", "Clear Search")),
		ClearTagsButton:       at(Role("button", "Clear Tags")),
		NotesDisplayedCounter: at(TextMatching(NotesDisplayedPattern)),
	}
}

// AccountMenu is the account actions menu in the left panel footer.
type AccountMenu struct {
	MenuButton           playwright.Locator
	ImportEnexMenuButton playwright.Locator
	ExportEnexMenuButton playwright.Locator
	DeleteAccountButton  playwright.Locator
}

func NewAccountMenu(page playwright.Page) *AccountMenu {
	at := inPage(page)
	return &AccountMenu{
		MenuButton:           at(`button[aria-haspopup="menu"]`).First(),
		ImportEnexMenuButton: at(Role("button", "Import .enex file")),
		ExportEnexMenuButton: at(Role("button", "Export .enex file")),
		DeleteAccountButton:  at(Role("button", "Delete my account")),
	}
}

// Patterns shown by the full-text search sidebar.
const (
	FoundNotesPattern     Pattern = `^Found:\s+\d+\s+note`
	SearchDurationPattern Pattern = `^\d+ms$`
	SearchModePattern     Pattern = `^(Quick|Full text) search$`
)

// FullTextSearchResults is the sidebar block shown for long full-text queries.
type FullTextSearchResults struct {
	Root                 playwright.Locator
	FoundNotesText       playwright.Locator
	SearchDurationText   playwright.Locator
	SearchModeLabel      playwright.Locator
	ResultCards          playwright.Locator
	HighlightedFragments playwright.Locator

	in locateFunc
}

func NewFullTextSearchResults(page playwright.Page) *FullTextSearchResults {
	root := page.Locator(HasTextMatching(`[data-testid="sidebar-container"]`, FoundNotesPattern))
	in := inLocator(root)
	return &FullTextSearchResults{
		Root:                 root,
		FoundNotesText:       in(TextMatching(FoundNotesPattern)),
		SearchDurationText:   in(TextMatching(SearchDurationPattern)),
		SearchModeLabel:      in(TextMatching(SearchModePattern) + "i"),
		ResultCards:          in(noteCardSelector),
		HighlightedFragments: in("mark"),
		in:                   in,
	}
}

// ResultCardByTitle returns the first result card containing title.
func (r *FullTextSearchResults) ResultCardByTitle(title string) playwright.Locator {
	return r.in(HasText(`[data-testid="note-card"]`, title)).First()
}

// TagChip returns the chip whose text is exactly tag on the card for title.
func (r *FullTextSearchResults) TagChip(title, tag string) playwright.Locator {
	return r.ResultCardByTitle(title).Locator(ExactText(tag))
}
