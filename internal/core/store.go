package core

import "context"

// IDColumn is the reserved column holding the synthetic row identifier.
const IDColumn = "id"

// RowRef is a store-native row reference: a sheet row number, a primary key
// or an in-memory serial depending on the backend. It is only meaningful
// within the document handle that produced it.
type RowRef int64

// SheetInfo describes one sheet of a document.
type SheetInfo struct {
	Index    int      // zero-based position within the document
	ID       int64    // store-native sheet identifier
	Title    string   // sheet name
	Headers  []string // declared column names, in header order
	RowCount int      // row count as reported by the store
}

// Record is a raw row as returned by the store.
type Record struct {
	Ref   RowRef
	Cells map[string]any
}

// Page restricts a row listing. Limit 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// Store opens document handles.
type Store interface {
	// Open loads the document metadata and returns a handle valid for the
	// duration of one request. Callers must Close it.
	Open(ctx context.Context) (Document, error)
}

// Document is a short-lived handle over the sheets of one document.
type Document interface {
	// ID returns the document identifier.
	ID() string

	// Sheets returns the sheet metadata loaded by Open, ordered by index.
	Sheets() []SheetInfo

	// Rows returns the data rows of a sheet in store order.
	Rows(ctx context.Context, sheet SheetInfo, page Page) ([]Record, error)

	// AppendRow adds a row after the last existing one.
	AppendRow(ctx context.Context, sheet SheetInfo, row Row) error

	// UpdateRow persists rec.Cells to the row referenced by rec.Ref.
	// Returns ErrRowNotFound if the reference no longer exists.
	UpdateRow(ctx context.Context, sheet SheetInfo, rec Record) error

	// DeleteRow removes the referenced row.
	// Returns ErrRowNotFound if the reference no longer exists.
	DeleteRow(ctx context.Context, sheet SheetInfo, ref RowRef) error

	// Close releases any resources held by the handle.
	Close() error
}
