package xl

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"
)

func buildContainer(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
	return buf.Bytes()
}

func openContainer(t *testing.T, entries map[string]string) *Workbook {
	t.Helper()
	data := buildContainer(t, entries)
	wb, err := OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	return wb
}

func openContainerErr(t *testing.T, entries map[string]string) (*Workbook, error) {
	t.Helper()
	data := buildContainer(t, entries)
	return OpenReader(bytes.NewReader(data), int64(len(data)))
}

const testWorkbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <workbookPr/>
  <sheets>
    <sheet name="Sheet1" sheetId="1" r:id="rId1"/>
  </sheets>
</workbook>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`

// singleSheet assembles a minimal workbook holding one sheet with the
// given row data.
func singleSheet(sheetXML string) map[string]string {
	return map[string]string{
		"xl/workbook.xml":             testWorkbookXML,
		"xl/_rels/workbook.xml.rels":  testRelsXML,
		"xl/worksheets/sheet1.xml":    sheetXML,
	}
}

// collectRows drains an iterator, failing the test on any error other
// than normal exhaustion.
func collectRows(t *testing.T, it *RowIterator) []*Row {
	t.Helper()
	var rows []*Row
	for {
		row, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rows
			}
			t.Fatalf("Next: %v", err)
		}
		rows = append(rows, row)
	}
}
