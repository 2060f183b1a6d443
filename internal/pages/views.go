package pages

import (
	"github.com/playwright-community/playwright-go"
)

// Accessible names shared with browserauth and tests.
const (
	TestLoginButtonName = "Test Login (Persistent)"
	NewNoteButtonName   = "New Note"
)

// Selectors used by more than one view.
var (
	noteCardSelector = TestID("note-card")
)

// LandingView is the unauthenticated start page.
type LandingView struct {
	TestLoginButton playwright.Locator
	QuickTestButton playwright.Locator
}

func NewLandingView(page playwright.Page) *LandingView {
	at := inPage(page)
	return &LandingView{
		TestLoginButton: at(Role("button", TestLoginButtonName)),
		QuickTestButton: at(Role("button", "Skip Authentication (Quick Test)")),
	}
}

// LeftPanel holds navigation, the account menu, search and the notes list.
type LeftPanel struct {
	NewNoteButton        playwright.Locator
	SelectNotesButton    playwright.Locator
	ExitSelectionButton  playwright.Locator
	DeleteSelectedButton playwright.Locator
	AccountMenu          *AccountMenu
	SearchControls       *SearchControls
	NotesList            playwright.Locator
	NoteCards            playwright.Locator

	at locateFunc
}

func NewLeftPanel(page playwright.Page) *LeftPanel {
	at := inPage(page)
	return &LeftPanel{
		NewNoteButton:        at(Role("button", NewNoteButtonName)),
		SelectNotesButton:    at(Role("button", "Select Notes")),
		ExitSelectionButton:  at(Role("button", "Exit selection")),
		DeleteSelectedButton: at(RoleMatching("button", "Delete selected")),
		AccountMenu:          NewAccountMenu(page),
		SearchControls:       NewSearchControls(page),
		NotesList:            at(Role("list", "")),
		NoteCards:            at(noteCardSelector),
		at:                   at,
	}
}

// NoteCard returns the card at index in list order.
func (p *LeftPanel) NoteCard(index int) *NoteCard {
	return NewNoteCard(p.NoteCards.Nth(index))
}

// NoteCardByTitle returns the first card containing title.
func (p *LeftPanel) NoteCardByTitle(title string) *NoteCard {
	return NewNoteCard(p.at(HasText("[data-testid=\"note-card\"]", title)).First())
}

// EditView is the right panel in editing mode.
type EditView struct {
	NoteTitleInput  playwright.Locator
	NoteContentArea playwright.Locator
	TiptapEditor    playwright.Locator
	SaveButton      playwright.Locator
	ReadButton      playwright.Locator
}

func NewEditView(page playwright.Page) *EditView {
	at := inPage(page)
	return &EditView{
		NoteTitleInput:  at(Role("textbox", "Note title")),
		NoteContentArea: at(".note-content"),
		TiptapEditor:    at(".tiptap"),
		SaveButton:      at(Role("button", "Save")),
		ReadButton:      at(Role("button", "Read")),
	}
}

// ReadView is the right panel in reading mode.
type ReadView struct {
	NoteText       playwright.Locator
	DeleteButton   playwright.Locator
	EmptyStateText playwright.Locator
	ReadingHeading playwright.Locator
}

func NewReadView(page playwright.Page) *ReadView {
	at := inPage(page)
	return &ReadView{
		NoteText:       at(".note-content > p"),
		DeleteButton:   at(Role("button", "Delete")),
		EmptyStateText: at(Text("Select a note or create a new")),
		ReadingHeading: at(Role("heading", "Reading")),
	}
}
