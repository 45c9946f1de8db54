package xl

import (
	"strings"
	"testing"
)

const testStylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <numFmts count="2">
    <numFmt numFmtId="164" formatCode="yyyy-mm-dd"/>
    <numFmt numFmtId="165" formatCode="0.000"/>
  </numFmts>
  <cellStyleXfs count="1">
    <xf numFmtId="0"/>
  </cellStyleXfs>
  <cellXfs count="5">
    <xf numFmtId="0"/>
    <xf numFmtId="14"/>
    <xf numFmtId="164"/>
    <xf numFmtId="165"/>
    <xf numFmtId="999"/>
  </cellXfs>
</styleSheet>`

func TestParseStyles(t *testing.T) {
	styles, err := parseStyles(strings.NewReader(testStylesXML))
	if err != nil {
		t.Fatalf("parseStyles: %v", err)
	}

	want := []string{"General", "mm-dd-yy", "yyyy-mm-dd", "0.000", ""}
	if len(styles) != len(want) {
		t.Fatalf("parseStyles returned %d styles, want %d: %v", len(styles), len(want), styles)
	}
	for i := range want {
		if styles[i] != want[i] {
			t.Errorf("styles[%d] = %q, want %q", i, styles[i], want[i])
		}
	}
}

func TestStyleCode(t *testing.T) {
	wb := &Workbook{styles: []string{"General", "mm-dd-yy", ""}}

	tests := []struct {
		attr string
		want string
	}{
		{"", ""},
		{"0", "General"},
		{"1", "mm-dd-yy"},
		{"2", ""},
		{"3", ""},   // past the table
		{"-1", ""},  // nonsense index
		{"abc", ""}, // not an index at all
	}
	for _, tt := range tests {
		if got := wb.styleCode(tt.attr); got != tt.want {
			t.Errorf("styleCode(%q) = %q, want %q", tt.attr, got, tt.want)
		}
	}
}

func TestStandardFormatsBuiltins(t *testing.T) {
	// Spot-check the ISO/IEC 29500 built-ins the date heuristic leans
	// on.
	checks := map[string]string{
		"14": "mm-dd-yy",
		"22": "m/d/yy h:mm",
		"38": "#,##0 ;[Red](#,##0)",
		"49": "@",
	}
	for id, want := range checks {
		if got := standardFormats[id]; got != want {
			t.Errorf("standardFormats[%s] = %q, want %q", id, got, want)
		}
	}
	if len(standardFormats) != 28 {
		t.Errorf("standardFormats holds %d codes, want 28", len(standardFormats))
	}
}
