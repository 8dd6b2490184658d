package tool

import (
	"encoding/json"
	"testing"
)

func TestCatalog_CoversEveryTool(t *testing.T) {
	defs := Catalog()
	if len(defs) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(defs))
	}
	for _, d := range defs {
		if !d.Name.Valid() {
			t.Errorf("catalog advertises unknown tool %q", d.Name)
		}
		required := 0
		for _, p := range d.Params {
			if p.Required {
				required++
			}
		}
		if required != 1 {
			t.Errorf("%s: expected exactly one required param, got %d", d.Name, required)
		}
	}
}

func TestName_Valid(t *testing.T) {
	if Name("delete_everything").Valid() {
		t.Error("unexpected valid tool")
	}
	if !GetDocumentPage.Valid() {
		t.Error("get_document_page should be valid")
	}
}

func TestDecodeArguments_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"object", `{"query":"mfa","section_filter":null}`, 2},
		{"empty", ``, 0},
		{"invalid json", `{"query":`, 0},
		{"array", `["mfa"]`, 0},
		{"null", `null`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := DecodeArguments(json.RawMessage(tc.raw))
			if args == nil {
				t.Fatal("expected non-nil map")
			}
			if len(args) != tc.want {
				t.Errorf("len = %d, want %d", len(args), tc.want)
			}
		})
	}
}

func TestStringArg_Coerces(t *testing.T) {
	args := DecodeArguments(json.RawMessage(`{"s":"  CC6.1 ","n":6.1,"i":42,"b":true,"o":{"a":1},"z":null}`))

	tests := map[string]string{
		"s":       "CC6.1",
		"n":       "6.1",
		"i":       "42",
		"b":       "true",
		"o":       `{"a":1}`,
		"z":       "",
		"missing": "",
	}
	for name, want := range tests {
		if got := StringArg(args, name); got != want {
			t.Errorf("StringArg(%q) = %q, want %q", name, got, want)
		}
	}
}
