package xl

import (
	"errors"
	"io"
	"strconv"
	"testing"
)

// sparseSheetXML declares rows 1, 3 and 5 only, each with two of the
// three known columns populated.
const sparseSheetXML = `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <dimension ref="A1:C5"/>
  <sheetData>
    <row r="1"><c r="A1"><v>1</v></c><c r="B1"><v>2</v></c></row>
    <row r="3"><c r="A3"><v>3</v></c><c r="C3"><v>4</v></c></row>
    <row r="5"><c r="B5"><v>5</v></c><c r="C5"><v>6</v></c></row>
  </sheetData>
</worksheet>`

func TestRowsFillGaps(t *testing.T) {
	wb := openContainer(t, singleSheet(sparseSheetXML))
	defer wb.Close()

	ws, err := wb.SheetByPosition(1)
	if err != nil {
		t.Fatalf("SheetByPosition(1): %v", err)
	}
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}

	for i, row := range rows {
		if row.Num != i+1 {
			t.Errorf("rows[%d].Num = %d, want %d", i, row.Num, i+1)
		}
		if len(row.Cells) != 3 {
			t.Errorf("row %d has %d cells, want 3", row.Num, len(row.Cells))
		}
	}

	// Rows absent from the source are synthesized fully Empty, with
	// correct addresses.
	for _, num := range []int{2, 4} {
		row := rows[num-1]
		for c, cell := range row.Cells {
			if !cell.Value.IsEmpty() {
				t.Errorf("row %d col %d = %v, want empty", num, c+1, cell.Value)
			}
			letters, _ := IndexToLetters(c + 1)
			if want := letters + strconv.Itoa(num); cell.Reference != want {
				t.Errorf("row %d col %d reference = %q, want %q", num, c+1, cell.Reference, want)
			}
			if cell.Type != "" || cell.Style != "" || cell.Formula != "" {
				t.Errorf("row %d col %d synthesized cell carries source attributes: %+v", num, c+1, cell)
			}
		}
	}

	// Skipped cells inside present rows are synthesized too.
	checks := []struct {
		row, col int
		empty    bool
		number   float64
		ref      string
	}{
		{1, 1, false, 1, "A1"},
		{1, 2, false, 2, "B1"},
		{1, 3, true, 0, "C1"},
		{3, 1, false, 3, "A3"},
		{3, 2, true, 0, "B3"},
		{3, 3, false, 4, "C3"},
		{5, 1, true, 0, "A5"},
		{5, 2, false, 5, "B5"},
		{5, 3, false, 6, "C5"},
	}
	for _, tt := range checks {
		cell := rows[tt.row-1].Cells[tt.col-1]
		if cell.Reference != tt.ref {
			t.Errorf("row %d col %d reference = %q, want %q", tt.row, tt.col, cell.Reference, tt.ref)
		}
		if tt.empty {
			if !cell.Value.IsEmpty() {
				t.Errorf("row %d col %d = %v, want empty", tt.row, tt.col, cell.Value)
			}
		} else if cell.Value.Kind != KindNumber || cell.Value.Number != tt.number {
			t.Errorf("row %d col %d = %v, want number %v", tt.row, tt.col, cell.Value, tt.number)
		}
	}
}

func TestRowsDrainToDeclaredCount(t *testing.T) {
	sheet := `<worksheet>
  <dimension ref="A1:B10"/>
  <sheetData>
    <row r="1"><c r="A1"><v>1</v></c></row>
    <row r="2"><c r="A2"><v>2</v></c></row>
    <row r="3"><c r="B3"><v>3</v></c></row>
  </sheetData>
</worksheet>`
	wb := openContainer(t, singleSheet(sheet))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(rows))
	}
	for i, row := range rows {
		if row.Num != i+1 {
			t.Errorf("rows[%d].Num = %d, want %d", i, row.Num, i+1)
		}
		if len(row.Cells) != 2 {
			t.Errorf("row %d has %d cells, want 2", row.Num, len(row.Cells))
		}
	}
	for _, row := range rows[3:] {
		for c, cell := range row.Cells {
			if !cell.Value.IsEmpty() {
				t.Errorf("drained row %d col %d = %v, want empty", row.Num, c+1, cell.Value)
			}
		}
	}

	// Exhaustion is terminal and repeatable.
	if _, err := it.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after exhaustion = %v, want io.EOF", err)
	}
	if _, err := it.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("second Next after exhaustion = %v, want io.EOF", err)
	}
}

func TestRowsWithoutHint(t *testing.T) {
	// No dimension element: the width comes from the rows themselves
	// and grows monotonically; nothing drains past the last real row.
	sheet := `<worksheet><sheetData>
    <row r="1"><c r="A1"><v>1</v></c></row>
    <row r="2"><c r="C2"><v>2</v></c></row>
  </sheetData></worksheet>`
	wb := openContainer(t, singleSheet(sheet))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rows[0].Cells) != 1 {
		t.Errorf("row 1 has %d cells, want 1 (width not yet known)", len(rows[0].Cells))
	}
	if len(rows[1].Cells) != 3 {
		t.Errorf("row 2 has %d cells, want 3", len(rows[1].Cells))
	}
}

func TestRowsValueDecoding(t *testing.T) {
	entries := singleSheet(`<worksheet><sheetData>
    <row r="1">
      <c r="A1" t="s"><v>0</v></c>
      <c r="B1" t="s"><v>99</v></c>
      <c r="C1" t="inlineStr"><is><t>in</t><t>line</t></is></c>
      <c r="D1" t="b"><v>1</v></c>
      <c r="E1" t="e"><v>#DIV/0</v></c>
      <c r="F1" s="1"><v>38406</v></c>
      <c r="G1"><f>SUM(A1:B1)</f><v>12.5</v></c>
      <c r="H1"><v>not-a-number</v></c>
    </row>
  </sheetData></worksheet>`)
	entries["xl/sharedStrings.xml"] = `<sst><si><t>hello</t></si></sst>`
	entries["xl/styles.xml"] = `<styleSheet><cellXfs><xf numFmtId="0"/><xf numFmtId="14"/></cellXfs></styleSheet>`

	wb := openContainer(t, entries)
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	cells := rows[0].Cells
	if len(cells) != 8 {
		t.Fatalf("got %d cells, want 8", len(cells))
	}

	if cells[0].Value.Kind != KindString || cells[0].Value.Text != "hello" {
		t.Errorf("A1 = %v %q, want shared string \"hello\"", cells[0].Value.Kind, cells[0].Value.Text)
	}
	// Index past the table falls back to the literal raw text.
	if cells[1].Value.Kind != KindString || cells[1].Value.Text != "99" {
		t.Errorf("B1 = %v %q, want literal \"99\"", cells[1].Value.Kind, cells[1].Value.Text)
	}
	if cells[2].Value.Kind != KindString || cells[2].Value.Text != "inline" {
		t.Errorf("C1 = %v %q, want inline string \"inline\"", cells[2].Value.Kind, cells[2].Value.Text)
	}
	if cells[3].Value.Kind != KindBool || !cells[3].Value.Bool {
		t.Errorf("D1 = %v, want true", cells[3].Value)
	}
	if cells[4].Value.Kind != KindError || cells[4].Value.Text != "#DIV/0" {
		t.Errorf("E1 = %v %q, want error #DIV/0", cells[4].Value.Kind, cells[4].Value.Text)
	}
	if cells[5].Value.Kind != KindDate {
		t.Errorf("F1 kind = %v, want date (style mm-dd-yy)", cells[5].Value.Kind)
	}
	if cells[5].Style != "mm-dd-yy" {
		t.Errorf("F1 style = %q, want mm-dd-yy", cells[5].Style)
	}
	if cells[6].Value.Kind != KindNumber || cells[6].Value.Number != 12.5 {
		t.Errorf("G1 = %v, want number 12.5", cells[6].Value)
	}
	if cells[6].Formula != "SUM(A1:B1)" {
		t.Errorf("G1 formula = %q, want SUM(A1:B1)", cells[6].Formula)
	}
	// A bad literal degrades to an Error cell; the row survives.
	if cells[7].Value.Kind != KindError {
		t.Errorf("H1 kind = %v, want error", cells[7].Value.Kind)
	}
	if cells[7].Raw != "not-a-number" {
		t.Errorf("H1 raw = %q, want not-a-number", cells[7].Raw)
	}
}

func TestRowsIndependentTraversals(t *testing.T) {
	wb := openContainer(t, singleSheet(sparseSheetXML))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)

	first, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	n1 := len(collectRows(t, first))
	first.Close()

	// A consumed iterator is done; traversing again takes a fresh one.
	if _, err := first.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next on closed iterator = %v, want io.EOF", err)
	}

	second, err := ws.Rows()
	if err != nil {
		t.Fatalf("second Rows: %v", err)
	}
	defer second.Close()
	n2 := len(collectRows(t, second))

	if n1 != 5 || n2 != 5 {
		t.Errorf("traversals yielded %d and %d rows, want 5 and 5", n1, n2)
	}
}

func TestRowsMissingSheetEntry(t *testing.T) {
	entries := singleSheet(sparseSheetXML)
	delete(entries, "xl/worksheets/sheet1.xml")
	wb := openContainer(t, entries)
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	_, err := ws.Rows()
	var missing *MissingEntryError
	if !errors.As(err, &missing) {
		t.Fatalf("Rows on missing entry error = %v, want *MissingEntryError", err)
	}
}

func TestRowsMalformedSheet(t *testing.T) {
	wb := openContainer(t, singleSheet(`<worksheet><sheetData><row r="1"><c r="A1"><v>1</v>`))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	_, err = it.Next()
	var malformed *MalformedXMLError
	if !errors.As(err, &malformed) {
		t.Fatalf("Next on truncated sheet = %v, want *MalformedXMLError", err)
	}
	// Terminal: the same failure comes back on the next pull.
	_, err2 := it.Next()
	if !errors.As(err2, &malformed) {
		t.Errorf("second Next = %v, want the terminal *MalformedXMLError", err2)
	}
}

func TestRowsRowNumbersMissingAttribute(t *testing.T) {
	// Rows without r attributes are taken as sequential.
	sheet := `<worksheet><sheetData>
    <row><c><v>1</v></c></row>
    <row><c><v>2</v></c></row>
  </sheetData></worksheet>`
	wb := openContainer(t, singleSheet(sheet))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Num != 1 || rows[1].Num != 2 {
		t.Errorf("row numbers = %d, %d, want 1, 2", rows[0].Num, rows[1].Num)
	}
	if rows[0].Cells[0].Reference != "A1" || rows[1].Cells[0].Reference != "A2" {
		t.Errorf("synthesized references = %q, %q, want A1, A2",
			rows[0].Cells[0].Reference, rows[1].Cells[0].Reference)
	}
	if rows[0].Cells[0].Value.Number != 1 || rows[1].Cells[0].Value.Number != 2 {
		t.Errorf("values = %v, %v, want 1, 2", rows[0].Cells[0].Value, rows[1].Cells[0].Value)
	}
}

func TestRowsHintOnlyAppliesBeforeRows(t *testing.T) {
	// A dimension element appearing after row data is ignored.
	sheet := `<worksheet><sheetData>
    <row r="1"><c r="A1"><v>1</v></c></row>
  </sheetData><dimension ref="A1:Z99"/></worksheet>`
	wb := openContainer(t, singleSheet(sheet))
	defer wb.Close()

	ws, _ := wb.SheetByPosition(1)
	it, err := ws.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer it.Close()

	rows := collectRows(t, it)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if len(rows[0].Cells) != 1 {
		t.Errorf("row 1 has %d cells, want 1", len(rows[0].Cells))
	}
}
