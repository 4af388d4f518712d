package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/sheetrest/internal/core"
)

func openTasks(t *testing.T) (*Store, core.Document) {
	t.Helper()
	s := New("doc", SheetSpec{
		Title:   "Tasks",
		Headers: []string{"id", "name"},
		Rows: []map[string]any{
			{"id": "1", "name": "alice"},
			{"id": "2", "name": "bob"},
			{"id": "3", "name": "carol"},
		},
	})
	doc, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return s, doc
}

func TestOpen_Snapshot(t *testing.T) {
	s, doc := openTasks(t)

	if doc.ID() != "doc" {
		t.Errorf("ID() = %q, want doc", doc.ID())
	}
	sheets := doc.Sheets()
	if len(sheets) != 1 || sheets[0].RowCount != 3 {
		t.Fatalf("Sheets() = %+v", sheets)
	}

	s.AddSheet(SheetSpec{Title: "Later"})
	if len(doc.Sheets()) != 1 {
		t.Error("open handle saw a sheet added after Open")
	}
}

func TestRows_Paging(t *testing.T) {
	_, doc := openTasks(t)
	ctx := context.Background()
	sheet := doc.Sheets()[0]

	tests := []struct {
		page core.Page
		want []string
	}{
		{core.Page{}, []string{"alice", "bob", "carol"}},
		{core.Page{Limit: 2}, []string{"alice", "bob"}},
		{core.Page{Offset: 1}, []string{"bob", "carol"}},
		{core.Page{Limit: 5, Offset: 2}, []string{"carol"}},
		{core.Page{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		recs, err := doc.Rows(ctx, sheet, tt.page)
		if err != nil {
			t.Fatalf("Rows(%+v) error = %v", tt.page, err)
		}
		if len(recs) != len(tt.want) {
			t.Errorf("Rows(%+v) = %d records, want %d", tt.page, len(recs), len(tt.want))
			continue
		}
		for i, rec := range recs {
			if rec.Cells["name"] != tt.want[i] {
				t.Errorf("Rows(%+v)[%d] = %v, want %s", tt.page, i, rec.Cells["name"], tt.want[i])
			}
		}
	}
}

func TestRows_ReturnsCopies(t *testing.T) {
	_, doc := openTasks(t)
	ctx := context.Background()
	sheet := doc.Sheets()[0]

	recs, _ := doc.Rows(ctx, sheet, core.Page{})
	recs[0].Cells["name"] = "mallory"

	again, _ := doc.Rows(ctx, sheet, core.Page{})
	if again[0].Cells["name"] != "alice" {
		t.Error("mutating a returned record changed the store")
	}
}

func TestAppendUpdateDelete(t *testing.T) {
	_, doc := openTasks(t)
	ctx := context.Background()
	sheet := doc.Sheets()[0]

	var r core.Row
	r.Set("id", "4")
	r.Set("name", "dave")
	if err := doc.AppendRow(ctx, sheet, r); err != nil {
		t.Fatalf("AppendRow error = %v", err)
	}

	recs, _ := doc.Rows(ctx, sheet, core.Page{})
	if len(recs) != 4 || recs[3].Cells["name"] != "dave" {
		t.Fatalf("after append: %+v", recs)
	}

	rec := recs[1]
	rec.Cells["name"] = "robert"
	if err := doc.UpdateRow(ctx, sheet, rec); err != nil {
		t.Fatalf("UpdateRow error = %v", err)
	}

	if err := doc.DeleteRow(ctx, sheet, recs[0].Ref); err != nil {
		t.Fatalf("DeleteRow error = %v", err)
	}

	recs, _ = doc.Rows(ctx, sheet, core.Page{})
	if len(recs) != 3 {
		t.Fatalf("after delete: %d rows, want 3", len(recs))
	}
	if recs[0].Cells["name"] != "robert" {
		t.Errorf("first row = %v, want robert", recs[0].Cells["name"])
	}
}

func TestStaleRef(t *testing.T) {
	_, doc := openTasks(t)
	ctx := context.Background()
	sheet := doc.Sheets()[0]

	recs, _ := doc.Rows(ctx, sheet, core.Page{})
	if err := doc.DeleteRow(ctx, sheet, recs[0].Ref); err != nil {
		t.Fatalf("DeleteRow error = %v", err)
	}

	if err := doc.DeleteRow(ctx, sheet, recs[0].Ref); !errors.Is(err, core.ErrRowNotFound) {
		t.Errorf("DeleteRow(stale) error = %v, want ErrRowNotFound", err)
	}
	if err := doc.UpdateRow(ctx, sheet, recs[0]); !errors.Is(err, core.ErrRowNotFound) {
		t.Errorf("UpdateRow(stale) error = %v, want ErrRowNotFound", err)
	}
}

func TestUnknownSheet(t *testing.T) {
	_, doc := openTasks(t)

	_, err := doc.Rows(context.Background(), core.SheetInfo{Index: 3}, core.Page{})
	if !errors.Is(err, core.ErrSheetNotFound) {
		t.Errorf("Rows error = %v, want ErrSheetNotFound", err)
	}
}

func TestConcurrentAppend(t *testing.T) {
	s, doc := openTasks(t)
	ctx := context.Background()
	sheet := doc.Sheets()[0]

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var r core.Row
			r.Set("name", "n")
			if err := doc.AppendRow(ctx, sheet, r); err != nil {
				t.Errorf("AppendRow error = %v", err)
			}
		}()
	}
	wg.Wait()

	doc2, _ := s.Open(ctx)
	defer doc2.Close()
	if got := doc2.Sheets()[0].RowCount; got != 23 {
		t.Errorf("RowCount = %d, want 23", got)
	}
}

func TestLoadSeed(t *testing.T) {
	seed := `[
		{"title": "Tasks", "headers": ["id", "name"], "rows": [{"id": "1", "name": "alice"}]},
		{"title": "Empty", "headers": ["id"]}
	]`
	specs, err := LoadSeed(strings.NewReader(seed))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(specs) != 2 || specs[0].Title != "Tasks" || len(specs[0].Rows) != 1 {
		t.Fatalf("specs = %+v", specs)
	}

	doc, err := New("doc", specs...).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()
	if got := doc.Sheets(); len(got) != 2 || got[0].RowCount != 1 || got[1].RowCount != 0 {
		t.Errorf("Sheets = %+v", got)
	}
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"not json", `nope`},
		{"unknown field", `[{"title": "T", "cols": []}]`},
		{"missing title", `[{"headers": ["id"]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSeed(strings.NewReader(tt.seed)); err == nil {
				t.Error("LoadSeed expected error")
			}
		})
	}
}
