// Package memory provides an in-process sheet store for local development and
// tests. Contents live only as long as the process.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/JonMunkholm/sheetrest/internal/core"
)

// SheetSpec seeds one sheet.
type SheetSpec struct {
	Title   string           `json:"title"`
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

// LoadSeed decodes a JSON array of sheets, as written to a seed file.
func LoadSeed(r io.Reader) ([]SheetSpec, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var specs []SheetSpec
	if err := dec.Decode(&specs); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i, spec := range specs {
		if spec.Title == "" {
			return nil, fmt.Errorf("seed sheet %d has no title", i)
		}
	}
	return specs, nil
}

// Store is a mutex-guarded set of sheets. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	id      string
	sheets  []*sheet
	nextRef core.RowRef
}

type sheet struct {
	id      int64
	title   string
	headers []string
	rows    []row
}

type row struct {
	ref   core.RowRef
	cells map[string]any
}

// New creates a store holding the given sheets in order.
func New(documentID string, specs ...SheetSpec) *Store {
	s := &Store{id: documentID}
	for _, spec := range specs {
		s.AddSheet(spec)
	}
	return s
}

// AddSheet appends a sheet and returns its index.
func (s *Store) AddSheet(spec SheetSpec) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh := &sheet{
		id:      int64(len(s.sheets)),
		title:   spec.Title,
		headers: append([]string(nil), spec.Headers...),
	}
	for _, cells := range spec.Rows {
		s.nextRef++
		sh.rows = append(sh.rows, row{ref: s.nextRef, cells: cloneCells(cells)})
	}
	s.sheets = append(s.sheets, sh)
	return len(s.sheets) - 1
}

// Open snapshots sheet metadata into a document handle.
func (s *Store) Open(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]core.SheetInfo, len(s.sheets))
	for i, sh := range s.sheets {
		infos[i] = core.SheetInfo{
			Index:    i,
			ID:       sh.id,
			Title:    sh.title,
			Headers:  append([]string(nil), sh.headers...),
			RowCount: len(sh.rows),
		}
	}
	return &document{store: s, sheets: infos}, nil
}

type document struct {
	store  *Store
	sheets []core.SheetInfo
}

func (d *document) ID() string { return d.store.id }

func (d *document) Sheets() []core.SheetInfo { return d.sheets }

func (d *document) Rows(ctx context.Context, info core.SheetInfo, page core.Page) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	sh, err := d.store.sheet(info)
	if err != nil {
		return nil, err
	}

	start := min(page.Offset, len(sh.rows))
	end := len(sh.rows)
	if page.Limit > 0 {
		end = min(start+page.Limit, end)
	}

	out := make([]core.Record, 0, end-start)
	for _, r := range sh.rows[start:end] {
		out = append(out, core.Record{Ref: r.ref, Cells: cloneCells(r.cells)})
	}
	return out, nil
}

func (d *document) AppendRow(ctx context.Context, info core.SheetInfo, r core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	sh, err := d.store.sheet(info)
	if err != nil {
		return err
	}

	d.store.nextRef++
	sh.rows = append(sh.rows, row{ref: d.store.nextRef, cells: r.Map()})
	return nil
}

func (d *document) UpdateRow(ctx context.Context, info core.SheetInfo, rec core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	sh, err := d.store.sheet(info)
	if err != nil {
		return err
	}

	i := sh.find(rec.Ref)
	if i < 0 {
		return fmt.Errorf("%w: ref %d", core.ErrRowNotFound, rec.Ref)
	}
	sh.rows[i].cells = cloneCells(rec.Cells)
	return nil
}

func (d *document) DeleteRow(ctx context.Context, info core.SheetInfo, ref core.RowRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	sh, err := d.store.sheet(info)
	if err != nil {
		return err
	}

	i := sh.find(ref)
	if i < 0 {
		return fmt.Errorf("%w: ref %d", core.ErrRowNotFound, ref)
	}
	sh.rows = append(sh.rows[:i], sh.rows[i+1:]...)
	return nil
}

func (d *document) Close() error { return nil }

// sheet resolves info to live storage. Caller holds s.mu.
func (s *Store) sheet(info core.SheetInfo) (*sheet, error) {
	if info.Index < 0 || info.Index >= len(s.sheets) {
		return nil, fmt.Errorf("%w: index %d", core.ErrSheetNotFound, info.Index)
	}
	return s.sheets[info.Index], nil
}

func (sh *sheet) find(ref core.RowRef) int {
	for i, r := range sh.rows {
		if r.ref == ref {
			return i
		}
	}
	return -1
}

func cloneCells(cells map[string]any) map[string]any {
	out := make(map[string]any, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	return out
}
