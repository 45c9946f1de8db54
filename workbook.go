package xl

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

const (
	workbookEntry      = "xl/workbook.xml"
	relsEntry          = "xl/_rels/workbook.xml.rels"
	sharedStringsEntry = "xl/sharedStrings.xml"
	stylesEntry        = "xl/styles.xml"
)

// Workbook is an open workbook container. It owns the tables shared by
// every traversal: the shared-string list, the flattened style
// format-code list, and the date system. All of them are read-only
// after open, so independent row iterators may consult them
// concurrently; a single iterator is not itself safe for concurrent
// use.
type Workbook struct {
	// Path is the file path the workbook was opened from, "" when
	// opened from an in-memory reader.
	Path string

	// DateSystem is the workbook's serial-date epoch convention.
	DateSystem DateSystem

	zr      *zip.Reader
	closer  io.Closer
	strings []string
	styles  []string
	sheets  []*Worksheet
	byName  map[string]int
}

// OpenWorkbook opens the workbook at path.
func OpenWorkbook(path string) (*Workbook, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	wb, err := newWorkbook(&rc.Reader, path)
	if err != nil {
		rc.Close()
		return nil, err
	}
	wb.closer = rc
	return wb, nil
}

// OpenReader opens a workbook from in-memory or otherwise seekable
// content.
func OpenReader(r io.ReaderAt, size int64) (*Workbook, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newWorkbook(zr, "")
}

func newWorkbook(zr *zip.Reader, path string) (*Workbook, error) {
	wb := &Workbook{
		Path:   path,
		zr:     zr,
		byName: make(map[string]int),
	}
	if err := wb.loadSharedStrings(); err != nil {
		return nil, err
	}
	if err := wb.loadStyles(); err != nil {
		return nil, err
	}
	rels, err := wb.loadRels()
	if err != nil {
		return nil, err
	}
	if err := wb.loadWorkbookMeta(rels); err != nil {
		return nil, err
	}
	return wb, nil
}

// Close releases the underlying container. Iterators obtained from the
// workbook must not be used afterwards.
func (wb *Workbook) Close() error {
	if wb.closer != nil {
		return wb.closer.Close()
	}
	return nil
}

// SheetNames returns the worksheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, ws := range wb.sheets {
		names[i] = ws.Name
	}
	return names
}

// NumSheets returns the number of worksheets present.
func (wb *Workbook) NumSheets() int {
	return len(wb.sheets)
}

// SheetByName returns the worksheet with the given name.
func (wb *Workbook) SheetByName(name string) (*Worksheet, error) {
	if i, ok := wb.byName[name]; ok {
		return wb.sheets[i], nil
	}
	return nil, &SheetNotFoundError{Name: name}
}

// SheetByPosition returns the worksheet at a 1-based position. There
// is never a 0th sheet.
func (wb *Workbook) SheetByPosition(pos int) (*Worksheet, error) {
	if pos < 1 || pos > len(wb.sheets) {
		return nil, &SheetNotFoundError{Position: pos}
	}
	return wb.sheets[pos-1], nil
}

// open yields a fresh read cursor over one container entry.
func (wb *Workbook) open(name string) (io.ReadCloser, error) {
	for _, f := range wb.zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, &MissingEntryError{Path: name}
}

// loadSharedStrings reads the deduplicated string table. The entry is
// optional; a workbook without one simply has no shared strings. Each
// si item becomes one table entry, rich-text runs concatenated.
func (wb *Workbook) loadSharedStrings() error {
	rc, err := wb.open(sharedStringsEntry)
	if err != nil {
		return nil
	}
	defer rc.Close()

	var sb strings.Builder
	inItem := false
	inText := false
	dec := newXMLDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &MalformedXMLError{Path: sharedStringsEntry, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				sb.Reset()
			case "t":
				inText = inItem
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "si":
				wb.strings = append(wb.strings, sb.String())
				inItem = false
			}
		}
	}
}

// loadStyles reads the optional styles entry. Without one, only the
// standard format codes exist and no cell carries a style, so the
// flattened list stays empty.
func (wb *Workbook) loadStyles() error {
	rc, err := wb.open(stylesEntry)
	if err != nil {
		return nil
	}
	defer rc.Close()

	styles, err := parseStyles(rc)
	if err != nil {
		return &MalformedXMLError{Path: stylesEntry, Err: err}
	}
	wb.styles = styles
	return nil
}

// loadRels maps relationship ids to resolved container paths. Targets
// are relative to xl/ unless they are absolute within the container.
func (wb *Workbook) loadRels() (map[string]string, error) {
	rc, err := wb.open(relsEntry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rels := make(map[string]string)
	dec := newXMLDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return rels, nil
		}
		if err != nil {
			return nil, &MalformedXMLError{Path: relsEntry, Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Relationship" {
			continue
		}
		id := attrValue(start, "Id")
		target := attrValue(start, "Target")
		if id == "" || target == "" {
			continue
		}
		if strings.HasPrefix(target, "/") {
			target = target[1:]
		} else {
			target = "xl/" + target
		}
		rels[id] = target
	}
}

// loadWorkbookMeta reads the workbook entry once, picking up the date
// system flag and the sheet list in declaration order.
func (wb *Workbook) loadWorkbookMeta(rels map[string]string) error {
	rc, err := wb.open(workbookEntry)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := newXMLDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &MalformedXMLError{Path: workbookEntry, Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "workbookPr":
			if v := attrValue(start, "date1904"); v == "1" || v == "true" {
				wb.DateSystem = Date1904
			}
		case "sheet":
			name := attrValue(start, "name")
			relID := attrValue(start, "id")
			sheetID, _ := strconv.Atoi(attrValue(start, "sheetId"))
			target, ok := rels[relID]
			if !ok {
				// A sheet with no backing relationship has no row
				// data to read.
				continue
			}
			ws := &Worksheet{
				Name:     name,
				Position: len(wb.sheets) + 1,
				SheetID:  sheetID,
				relID:    relID,
				target:   target,
				wb:       wb,
			}
			wb.byName[name] = len(wb.sheets)
			wb.sheets = append(wb.sheets, ws)
		}
	}
}
