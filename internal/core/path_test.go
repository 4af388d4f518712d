package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"get-doc-info", []string{"get-doc-info"}},
		{"/get-rows/0", []string{"get-rows", "0"}},
		{"get-rows/0/", []string{"get-rows", "0"}},
		{"find-row-by-column-name-and-value/0/status/open", []string{"find-row-by-column-name-and-value", "0", "status", "open"}},
		{"find-row-by-column-name-and-value/0/full%20name/Jane%20Doe", []string{"find-row-by-column-name-and-value", "0", "full name", "Jane Doe"}},
		{"", []string{""}},
		{"/", []string{""}},
		{"0//3", []string{"0", "", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ParsePath(tt.path); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestParsePath_BadEscapeKeptVerbatim(t *testing.T) {
	got := ParsePath("a/%zz")
	if got[1] != "%zz" {
		t.Errorf("segment = %q, want %%zz", got[1])
	}
}

func TestSheetIndexArg(t *testing.T) {
	if n, err := SheetIndexArg("2"); err != nil || n != 2 {
		t.Errorf("SheetIndexArg(2) = %d, %v", n, err)
	}
	for _, bad := range []string{"", "-1", "abc", "1.5"} {
		if _, err := SheetIndexArg(bad); !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("SheetIndexArg(%q) error = %v, want ErrMalformedRequest", bad, err)
		}
	}
}

func TestRowIDArg(t *testing.T) {
	if n, err := RowIDArg("7"); err != nil || n != 7 {
		t.Errorf("RowIDArg(7) = %d, %v", n, err)
	}
	if _, err := RowIDArg("seven"); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("RowIDArg(seven) error = %v, want ErrMalformedRequest", err)
	}
}
