package core

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/JonMunkholm/sheetrest/internal/logging"
)

// Service executes row operations against a Store. It keeps no state between
// calls: every operation opens a fresh document, re-reads what it needs and
// closes the handle before returning.
type Service struct {
	store   Store
	inserts *InsertLimiter
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithInsertLimiter bounds concurrent inserts with l.
func WithInsertLimiter(l *InsertLimiter) ServiceOption {
	return func(s *Service) { s.inserts = l }
}

// NewService creates a Service backed by store. Without WithInsertLimiter,
// inserts are serialized through a single slot with no wait limit beyond the
// caller's context.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.inserts == nil {
		s.inserts = NewInsertLimiter(1, 0)
	}
	return s
}

// Inserts returns the limiter guarding inserts.
func (s *Service) Inserts() *InsertLimiter {
	return s.inserts
}

// SheetSummary is one entry of DocInfo.
type SheetSummary struct {
	Index    int    `json:"Sheet Index"`
	Title    string `json:"Sheet name"`
	RowCount int    `json:"Rows on it"`
}

// DocInfo describes the document and its sheets.
type DocInfo struct {
	DocumentID string         `json:"googleSheetId"`
	SheetCount int            `json:"numberOfSheetsDocumentContains"`
	Sheets     []SheetSummary `json:"sheetsInfo"`
}

// RowList is the full serialized content of a sheet.
type RowList struct {
	RowCount    int      `json:"numberOfRowsContainingData"`
	ColumnCount int      `json:"numberOfColumnsContainingData"`
	Headers     []string `json:"headers"`
	Rows        []Row    `json:"rowsData"`
}

// RowMatch is a row located by id. Position is NotFound and Row is empty
// when nothing matched.
type RowMatch struct {
	Position int `json:"zeroIndexRowNumber"`
	Row      Row `json:"rowData"`
}

// IDMatch is the position of a row located by id.
type IDMatch struct {
	Position   int `json:"zeroIndexRowNumber"`
	ProvidedID int `json:"providedId"`
}

// ColumnMatch is a row located by column value. Column and Value echo the
// normalized lookup key.
type ColumnMatch struct {
	Position int    `json:"zeroIndexRowNumber"`
	Row      Row    `json:"rowData"`
	Column   string `json:"providedColumnName"`
	Value    string `json:"providedValue"`
}

// InsertResult reports an appended row.
type InsertResult struct {
	Message  string `json:"message"`
	NewID    int    `json:"newId"`
	Position int    `json:"zeroIndexRowNumber"`
	Row      Row    `json:"addedData"`
}

// PatchResult reports a partial update.
type PatchResult struct {
	Message  string `json:"message"`
	Position int    `json:"zeroIndexRowNumber"`
	Patched  Row    `json:"patchedData"`
}

// DeleteResult reports a removed row.
type DeleteResult struct {
	Message  string `json:"message"`
	Position int    `json:"zeroIndexRowNumber"`
}

// DocInfo lists the sheets of the document.
func (s *Service) DocInfo(ctx context.Context) (*DocInfo, error) {
	doc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	sheets := doc.Sheets()
	info := &DocInfo{
		DocumentID: doc.ID(),
		SheetCount: len(sheets),
		Sheets:     make([]SheetSummary, len(sheets)),
	}
	for i, sh := range sheets {
		info.Sheets[i] = SheetSummary{Index: sh.Index, Title: sh.Title, RowCount: sh.RowCount}
	}
	return info, nil
}

// ListRows returns the serialized rows of a sheet. page is passed to the store.
func (s *Service) ListRows(ctx context.Context, sheetIndex int, page Page) (*RowList, error) {
	doc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	sheet, err := sheetAt(doc, sheetIndex)
	if err != nil {
		return nil, err
	}

	records, err := doc.Rows(ctx, sheet, page)
	if err != nil {
		return nil, fmt.Errorf("read rows of sheet %q: %w", sheet.Title, err)
	}

	headers := make([]string, len(sheet.Headers))
	copy(headers, sheet.Headers)

	return &RowList{
		RowCount:    len(records),
		ColumnCount: len(headers),
		Headers:     headers,
		Rows:        SerializeAll(sheet, records),
	}, nil
}

// GetRow returns the row carrying id.
func (s *Service) GetRow(ctx context.Context, sheetIndex, id int) (*RowMatch, error) {
	doc, sheet, _, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pos := LocateByID(rows, id)
	match := &RowMatch{Position: pos}
	if pos != NotFound {
		match.Row = rows[pos]
	}

	logging.FromContext(ctx).Debug("row located by id",
		"sheet", sheet.Title, "id", id, "position", pos)
	return match, nil
}

// FindRowByID returns only the position of the row carrying id.
func (s *Service) FindRowByID(ctx context.Context, sheetIndex, id int) (*IDMatch, error) {
	doc, _, _, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return &IDMatch{Position: LocateByID(rows, id), ProvidedID: id}, nil
}

// FindRowByColumnValue returns the first row whose column equals value,
// compared case-insensitively and trimmed.
func (s *Service) FindRowByColumnValue(ctx context.Context, sheetIndex int, column, value string) (*ColumnMatch, error) {
	doc, sheet, _, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pos := LocateByColumnValue(sheet.Headers, rows, column, value)
	match := &ColumnMatch{
		Position: pos,
		Column:   Normalize(column),
		Value:    Normalize(value),
	}
	if pos != NotFound {
		match.Row = rows[pos]
	}

	logging.FromContext(ctx).Debug("row located by column value",
		"sheet", sheet.Title, "column", match.Column, "position", pos)
	return match, nil
}

// InsertRow appends body as a new row with the next free id as its first
// field. body must be a JSON object without an id field.
func (s *Service) InsertRow(ctx context.Context, sheetIndex int, body []byte) (*InsertResult, error) {
	payload, err := DecodeRow(body)
	if err != nil {
		return nil, err
	}
	if _, ok := payload.Get(IDColumn); ok {
		return nil, fmt.Errorf("%w: %q must not be supplied", ErrReservedColumn, IDColumn)
	}

	if err := s.inserts.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.inserts.Release()

	doc, sheet, _, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if err := checkColumns(sheet, payload); err != nil {
		return nil, err
	}
	if !slices.Contains(sheet.Headers, IDColumn) {
		return nil, fmt.Errorf("%w: sheet %q has no %q column", ErrUnknownColumn, sheet.Title, IDColumn)
	}

	newID := NextID(rows)
	payload.Prepend(IDColumn, strconv.Itoa(newID))

	if err := doc.AppendRow(ctx, sheet, payload); err != nil {
		return nil, fmt.Errorf("append row to sheet %q: %w", sheet.Title, err)
	}

	logging.WithFields(ctx, "sheet", sheet.Title, "id", newID).
		Info("row inserted", "position", len(rows))

	return &InsertResult{
		Message:  fmt.Sprintf("POST Success! - Added row with id # %d on sheet named: %s", newID, sheet.Title),
		NewID:    newID,
		Position: len(rows),
		Row:      payload,
	}, nil
}

// PatchRow overwrites the fields named in body on the row carrying id.
// Columns absent from body keep their values.
func (s *Service) PatchRow(ctx context.Context, sheetIndex, id int, body []byte) (*PatchResult, error) {
	payload, err := DecodeRow(body)
	if err != nil {
		return nil, err
	}

	doc, sheet, records, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pos := LocateByID(rows, id)
	if pos == NotFound {
		return nil, fmt.Errorf("%w: id %d on sheet %q", ErrRowNotFound, id, sheet.Title)
	}
	if err := checkColumns(sheet, payload); err != nil {
		return nil, err
	}

	rec := records[pos]
	rec.Cells = mergeCells(rec.Cells, payload)
	if err := doc.UpdateRow(ctx, sheet, rec); err != nil {
		return nil, fmt.Errorf("save row %d of sheet %q: %w", pos, sheet.Title, err)
	}

	logging.WithFields(ctx, "sheet", sheet.Title, "id", id).
		Info("row patched", "position", pos, "fields", payload.Len())

	return &PatchResult{
		Message:  fmt.Sprintf("Row # %d with id # %d on sheet named: --%s-- successfully PATCHED!", pos, id, sheet.Title),
		Position: pos,
		Patched:  payload,
	}, nil
}

// DeleteRow removes the row carrying id.
func (s *Service) DeleteRow(ctx context.Context, sheetIndex, id int) (*DeleteResult, error) {
	doc, sheet, records, rows, err := s.load(ctx, sheetIndex)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pos := LocateByID(rows, id)
	if pos == NotFound {
		return nil, fmt.Errorf("%w: id %d on sheet %q", ErrRowNotFound, id, sheet.Title)
	}

	if err := doc.DeleteRow(ctx, sheet, records[pos].Ref); err != nil {
		return nil, fmt.Errorf("delete row %d of sheet %q: %w", pos, sheet.Title, err)
	}

	logging.WithFields(ctx, "sheet", sheet.Title, "id", id).
		Info("row deleted", "position", pos)

	return &DeleteResult{
		Message:  fmt.Sprintf("Row # %d with id # %d on sheet named: --%s-- successfully DELETED!", pos, id, sheet.Title),
		Position: pos,
	}, nil
}

// open opens a document handle for one operation.
func (s *Service) open(ctx context.Context) (Document, error) {
	doc, err := s.store.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return doc, nil
}

// load opens the document and fetches every row of a sheet, raw and
// serialized. On success the caller owns doc and must close it.
func (s *Service) load(ctx context.Context, sheetIndex int) (Document, SheetInfo, []Record, []Row, error) {
	doc, err := s.open(ctx)
	if err != nil {
		return nil, SheetInfo{}, nil, nil, err
	}

	sheet, err := sheetAt(doc, sheetIndex)
	if err != nil {
		doc.Close()
		return nil, SheetInfo{}, nil, nil, err
	}

	records, err := doc.Rows(ctx, sheet, Page{})
	if err != nil {
		doc.Close()
		return nil, SheetInfo{}, nil, nil, fmt.Errorf("read rows of sheet %q: %w", sheet.Title, err)
	}

	return doc, sheet, records, SerializeAll(sheet, records), nil
}

// sheetAt returns the sheet at index.
func sheetAt(doc Document, index int) (SheetInfo, error) {
	sheets := doc.Sheets()
	if index < 0 || index >= len(sheets) {
		return SheetInfo{}, fmt.Errorf("%w: index %d, document has %d sheets", ErrSheetNotFound, index, len(sheets))
	}
	return sheets[index], nil
}
