// Package pages holds page objects for the notes application, one per view,
// subview and dialog. Locators are lazy: nothing touches the browser until an
// action or assertion runs on them.
package pages

import (
	"github.com/playwright-community/playwright-go"
)

// locateFunc resolves a selector within a page or a parent locator.
type locateFunc func(selector string) playwright.Locator

func inPage(page playwright.Page) locateFunc {
	return func(selector string) playwright.Locator { return page.Locator(selector) }
}

func inLocator(root playwright.Locator) locateFunc {
	return func(selector string) playwright.Locator { return root.Locator(selector) }
}

// All bundles every page object for one page.
type All struct {
	Landing               *LandingView
	LeftPanel             *LeftPanel
	EditView              *EditView
	ReadView              *ReadView
	DeleteDialog          *DeleteDialog
	BulkDeleteDialog      *BulkDeleteDialog
	ExportNotesDialog     *ExportNotesDialog
	ExportCompletedDialog *ExportCompletedDialog
	ImportNotesDialog     *ImportNotesDialog
	ImportCompletedDialog *ImportCompletedDialog
	FullTextSearchResults *FullTextSearchResults
}

// NewAll builds every page object for page.
func NewAll(page playwright.Page) *All {
	return &All{
		Landing:               NewLandingView(page),
		LeftPanel:             NewLeftPanel(page),
		EditView:              NewEditView(page),
		ReadView:              NewReadView(page),
		DeleteDialog:          NewDeleteDialog(page),
		BulkDeleteDialog:      NewBulkDeleteDialog(page),
		ExportNotesDialog:     NewExportNotesDialog(page),
		ExportCompletedDialog: NewExportCompletedDialog(page),
		ImportNotesDialog:     NewImportNotesDialog(page),
		ImportCompletedDialog: NewImportCompletedDialog(page),
		FullTextSearchResults: NewFullTextSearchResults(page),
	}
}
