package main

import (
	"strings"
	"testing"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

func TestParseBaseFile(t *testing.T) {
	defs, err := parseBaseFile([]byte(`
bases:
  - base_id: " app1 "
    table_name: Projects
    custom_instructions: "  Web games only.  "
    field_mappings:
      code_url: Code URL
      playable_url: Playable URL
      hackatime_hours: none
  - base_id: app1
    table_name: Archive
`))
	if err != nil {
		t.Fatalf("parseBaseFile: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("defs = %+v", defs)
	}

	first := defs[0]
	if first.BaseID != "app1" || first.CustomInstructions != "Web games only." {
		t.Errorf("first = %+v", first)
	}
	want := entity.FieldMappings{CodeURL: "Code URL", PlayableURL: "Playable URL"}
	if first.FieldMappings != want {
		t.Errorf("mappings = %+v, want %+v", first.FieldMappings, want)
	}
}

func TestParseBaseFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"not yaml", "bases: [", "invalid base file"},
		{"empty", "bases: []", "no bases"},
		{"missing table", "bases:\n  - base_id: app1\n", "required"},
		{"duplicate", "bases:\n  - {base_id: app1, table_name: T}\n  - {base_id: app1, table_name: T}\n", "defined twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBaseFile([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
