package core

import "testing"

func rowsOf(headers []string, cells ...map[string]any) []Row {
	sheet := SheetInfo{Headers: headers}
	out := make([]Row, len(cells))
	for i, c := range cells {
		out[i] = Serialize(sheet, c)
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Open ": "open",
		"STATUS":  "status",
		"":        "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{"3", 3, true},
		{" 3 ", 3, true},
		{"3.0", 3, true},
		{3, 3, true},
		{float64(4), 4, true},
		{"3.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseID(%#v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLocateByID(t *testing.T) {
	rows := rowsOf([]string{"id", "name"},
		map[string]any{"id": "1", "name": "alice"},
		map[string]any{"id": "2", "name": "bob"},
		map[string]any{"id": "2", "name": "dup"},
	)

	if got := LocateByID(rows, 2); got != 1 {
		t.Errorf("LocateByID(2) = %d, want 1 (first match)", got)
	}
	if got := LocateByID(rows, 9); got != NotFound {
		t.Errorf("LocateByID(9) = %d, want NotFound", got)
	}
	if got := LocateByID(nil, 1); got != NotFound {
		t.Errorf("LocateByID on empty sheet = %d, want NotFound", got)
	}
}

func TestLocateByID_NoIDColumn(t *testing.T) {
	rows := rowsOf([]string{"name"}, map[string]any{"name": "alice"})
	if got := LocateByID(rows, 1); got != NotFound {
		t.Errorf("LocateByID = %d, want NotFound", got)
	}
}

func TestLocateByColumnValue(t *testing.T) {
	headers := []string{"id", "Name", "status"}
	rows := rowsOf(headers,
		map[string]any{"id": "1", "Name": "alice", "status": "open"},
		map[string]any{"id": "2", "Name": "bob", "status": "open"},
		map[string]any{"id": "3", "Name": "", "status": "closed"},
	)

	tests := []struct {
		name   string
		column string
		value  string
		want   int
	}{
		{"first match wins", "status", "open", 0},
		{"case and space insensitive value", "Name", " ALICE ", 0},
		{"case insensitive column", " name", "bob", 1},
		{"no match", "status", "pending", NotFound},
		{"unknown column", "colour", "open", NotFound},
		{"empty cells never match", "Name", "", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocateByColumnValue(headers, rows, tt.column, tt.value); got != tt.want {
				t.Errorf("LocateByColumnValue(%q, %q) = %d, want %d", tt.column, tt.value, got, tt.want)
			}
		})
	}
}
