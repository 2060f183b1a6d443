package pages

import (
	"github.com/playwright-community/playwright-go"
)

// DeleteDialog confirms deleting one note.
type DeleteDialog struct {
	Dialog        playwright.Locator
	TitleHeading  playwright.Locator
	ConfirmButton playwright.Locator
	CancelButton  playwright.Locator
}

func NewDeleteDialog(page playwright.Page) *DeleteDialog {
	dialog := page.Locator(Role("alertdialog", "Delete Note"))
	in := inLocator(dialog)
	return &DeleteDialog{
		Dialog:        dialog,
		TitleHeading:  in(Role("heading", "Delete Note")),
		ConfirmButton: in(Role("button", "Delete")),
		CancelButton:  in(Role("button", "Cancel")),
	}
}

// BulkDeleteDialog confirms deleting the selected notes; the user types the
// count into ConfirmationInput.
type BulkDeleteDialog struct {
	Dialog            playwright.Locator
	TitleHeading      playwright.Locator
	ConfirmationInput playwright.Locator
	ConfirmButton     playwright.Locator
	CancelButton      playwright.Locator
}

func NewBulkDeleteDialog(page playwright.Page) *BulkDeleteDialog {
	dialog := page.Locator(Role("alertdialog", "Delete selected notes"))
	in := inLocator(dialog)
	return &BulkDeleteDialog{
		Dialog:            dialog,
		TitleHeading:      in(Role("heading", "Delete selected notes")),
		ConfirmationInput: in(Role("spinbutton", "")),
		ConfirmButton:     in(Role("button", "Delete")),
		CancelButton:      in(Role("button", "Cancel")),
	}
}

// SelectedCounterPattern matches the export selection counter.
const SelectedCounterPattern Pattern = `Selected: \d+ of \d+`

// ExportNotesDialog selects notes for ENEX export.
type ExportNotesDialog struct {
	Dialog          playwright.Locator
	TitleHeading    playwright.Locator
	SearchInput     playwright.Locator
	SelectedCounter playwright.Locator
	SelectAllButton playwright.Locator
	ExportButton    playwright.Locator
	CancelButton    playwright.Locator

	in locateFunc
}

func NewExportNotesDialog(page playwright.Page) *ExportNotesDialog {
	dialog := page.Locator(Role("dialog", "Export notes to .enex"))
	in := inLocator(dialog)
	return &ExportNotesDialog{
		Dialog:          dialog,
		TitleHeading:    in(Role("heading", "Export notes to .enex")),
		SearchInput:     in(Role("textbox", "Search by title or text")),
		SelectedCounter: in(TextMatching(SelectedCounterPattern)),
		SelectAllButton: in(Role("button", "Select all")),
		ExportButton:    in(Role("button", "Export")),
		CancelButton:    in(Role("button", "Cancel")),
		in:              in,
	}
}

// NoteCheckbox returns the selection checkbox for the note titled title.
func (d *ExportNotesDialog) NoteCheckbox(title string) playwright.Locator {
	return d.in(Role("checkbox", "Select note "+title))
}

// ExportCompletedDialog is shown after a successful export.
type ExportCompletedDialog struct {
	Dialog       playwright.Locator
	TitleHeading playwright.Locator
	ReadyMessage playwright.Locator
	CloseButton  playwright.Locator
}

func NewExportCompletedDialog(page playwright.Page) *ExportCompletedDialog {
	dialog := page.Locator(Role("dialog", "Export completed"))
	in := inLocator(dialog)
	return &ExportCompletedDialog{
		Dialog:       dialog,
		TitleHeading: in(Role("heading", "Export completed")),
		ReadyMessage: in(Text("File is ready to download.")),
		CloseButton:  in(Role("button", "Close")).First(),
	}
}

// ImportNotesDialog imports an ENEX file.
type ImportNotesDialog struct {
	Dialog                  playwright.Locator
	TitleHeading            playwright.Locator
	SkipDuplicateNotesRadio playwright.Locator
	ChooseFileButton        playwright.Locator
	ImportButton            playwright.Locator
	CancelButton            playwright.Locator
}

func NewImportNotesDialog(page playwright.Page) *ImportNotesDialog {
	dialog := page.Locator(Role("dialog", "Import ENEX file"))
	in := inLocator(dialog)
	return &ImportNotesDialog{
		Dialog:                  dialog,
		TitleHeading:            in(Role("heading", "Import ENEX file")),
		SkipDuplicateNotesRadio: in(Role("radio", "Skip duplicate notes")),
		ChooseFileButton:        in(Role("button", "Choose File")),
		ImportButton:            in(Role("button", "Import")),
		CancelButton:            in(Role("button", "Cancel")),
	}
}

// ImportCompletedDialog is shown when an import finishes.
type ImportCompletedDialog struct {
	Dialog              playwright.Locator
	TitleHeading        playwright.Locator
	ReadyMessage        playwright.Locator
	SuccessfulCountText playwright.Locator
	CloseButton         playwright.Locator
}

func NewImportCompletedDialog(page playwright.Page) *ImportCompletedDialog {
	dialog := page.Locator(Role("dialog", "Import Complete"))
	in := inLocator(dialog)
	return &ImportCompletedDialog{
		Dialog:              dialog,
		TitleHeading:        in(Role("heading", "Import Complete")),
		ReadyMessage:        in(Text("Your import has finished.")),
		SuccessfulCountText: in(Text("Successfully imported")),
		CloseButton:         in(Role("button", "Close")).First(),
	}
}
