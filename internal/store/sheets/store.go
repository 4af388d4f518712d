// Package sheets implements the row store over a Google Sheets spreadsheet.
//
// The first row of every sheet is its header row. Data rows are addressed by
// their 1-based sheet row number, so the first data row has RowRef 2.
// Blank header cells keep their column position but are not exposed as
// columns.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/JonMunkholm/sheetrest/internal/core"
)

// firstDataRow is the sheet row number of the first row below the header.
const firstDataRow = 2

// Config holds service account credentials and the target spreadsheet.
type Config struct {
	SpreadsheetID       string
	ServiceAccountEmail string
	PrivateKey          string // PEM; literal "\n" sequences are expanded
	Endpoint            string // optional API endpoint override
}

// Store opens handles on a single spreadsheet.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
}

// New authenticates with a service account and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}

	conf := &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	opts := []option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx))}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID), nil
}

// NewWithService wraps an already configured Sheets API client.
func NewWithService(svc *sheets.Service, spreadsheetID string) *Store {
	return &Store{svc: svc, spreadsheetID: spreadsheetID}
}

// Open loads sheet properties and header rows.
func (s *Store) Open(ctx context.Context) (core.Document, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("spreadsheetId,sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: load spreadsheet info: %w", err)
	}

	doc := &document{
		svc:     s.svc,
		id:      ss.SpreadsheetId,
		columns: make(map[int][]string, len(ss.Sheets)),
	}
	if doc.id == "" {
		doc.id = s.spreadsheetID
	}

	ranges := make([]string, 0, len(ss.Sheets))
	for i, sh := range ss.Sheets {
		p := sh.Properties
		if p == nil {
			p = &sheets.SheetProperties{}
		}
		info := core.SheetInfo{Index: i, ID: p.SheetId, Title: p.Title}
		if p.GridProperties != nil {
			info.RowCount = int(p.GridProperties.RowCount)
		}
		doc.sheets = append(doc.sheets, info)
		ranges = append(ranges, quoteTitle(p.Title)+"!1:1")
	}

	if len(ranges) == 0 {
		return doc, nil
	}

	resp, err := s.svc.Spreadsheets.Values.BatchGet(s.spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: load header rows: %w", err)
	}

	for i := range doc.sheets {
		var cols []string
		if i < len(resp.ValueRanges) && len(resp.ValueRanges[i].Values) > 0 {
			for _, cell := range resp.ValueRanges[i].Values[0] {
				cols = append(cols, strings.TrimSpace(fmt.Sprint(cell)))
			}
		}
		doc.columns[i] = cols
		for _, c := range cols {
			if c != "" {
				doc.sheets[i].Headers = append(doc.sheets[i].Headers, c)
			}
		}
	}

	return doc, nil
}

type document struct {
	svc     *sheets.Service
	id      string
	sheets  []core.SheetInfo
	columns map[int][]string // full header row per sheet index, blanks included
}

func (d *document) ID() string { return d.id }

func (d *document) Sheets() []core.SheetInfo { return d.sheets }

func (d *document) Rows(ctx context.Context, info core.SheetInfo, page core.Page) ([]core.Record, error) {
	cols, err := d.columnsOf(info)
	if err != nil {
		return nil, err
	}

	first := firstDataRow + page.Offset
	last := info.RowCount
	if page.Limit > 0 {
		last = min(last, first+page.Limit-1)
	}
	if first > last {
		return []core.Record{}, nil
	}

	rng := fmt.Sprintf("%s!%d:%d", quoteTitle(info.Title), first, last)
	vr, err := d.svc.Spreadsheets.Values.Get(d.id, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", rng, err)
	}

	records := make([]core.Record, 0, len(vr.Values))
	for i, values := range vr.Values {
		cells := make(map[string]any, len(cols))
		for j, c := range cols {
			if c == "" || j >= len(values) {
				continue
			}
			cells[c] = values[j]
		}
		records = append(records, core.Record{Ref: core.RowRef(first + i), Cells: cells})
	}
	return records, nil
}

func (d *document) AppendRow(ctx context.Context, info core.SheetInfo, row core.Row) error {
	cols, err := d.columnsOf(info)
	if err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{rowValues(cols, row.Get)}}
	_, err = d.svc.Spreadsheets.Values.Append(d.id, quoteTitle(info.Title)+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append to %q: %w", info.Title, err)
	}
	return nil
}

func (d *document) UpdateRow(ctx context.Context, info core.SheetInfo, rec core.Record) error {
	cols, err := d.columnsOf(info)
	if err != nil {
		return err
	}
	if rec.Ref < firstDataRow {
		return fmt.Errorf("%w: sheet row %d", core.ErrRowNotFound, rec.Ref)
	}

	// A nil cell would be skipped by the API, so a cleared field is sent as "".
	get := func(c string) (any, bool) {
		v, ok := rec.Cells[c]
		if ok && v == nil {
			return "", true
		}
		return v, ok
	}
	rng := fmt.Sprintf("%s!A%d", quoteTitle(info.Title), rec.Ref)
	vr := &sheets.ValueRange{Values: [][]interface{}{rowValues(cols, get)}}
	_, err = d.svc.Spreadsheets.Values.Update(d.id, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", rng, err)
	}
	return nil
}

func (d *document) DeleteRow(ctx context.Context, info core.SheetInfo, ref core.RowRef) error {
	if _, err := d.columnsOf(info); err != nil {
		return err
	}
	if ref < firstDataRow {
		return fmt.Errorf("%w: sheet row %d", core.ErrRowNotFound, ref)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    info.ID,
					Dimension:  "ROWS",
					StartIndex: int64(ref) - 1,
					EndIndex:   int64(ref),
				},
			},
		}},
	}
	if _, err := d.svc.Spreadsheets.BatchUpdate(d.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: delete row %d of %q: %w", ref, info.Title, err)
	}
	return nil
}

func (d *document) Close() error { return nil }

func (d *document) columnsOf(info core.SheetInfo) ([]string, error) {
	if info.Index < 0 || info.Index >= len(d.sheets) {
		return nil, fmt.Errorf("%w: index %d", core.ErrSheetNotFound, info.Index)
	}
	return d.columns[info.Index], nil
}

// rowValues lays a row out in header-column order. Blank-header and missing
// columns are sent as nil, which the Sheets API leaves untouched.
func rowValues(cols []string, get func(string) (any, bool)) []interface{} {
	values := make([]interface{}, len(cols))
	for i, c := range cols {
		if c == "" {
			continue
		}
		if v, ok := get(c); ok {
			values[i] = v
		}
	}
	return values
}

// quoteTitle quotes a sheet title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
