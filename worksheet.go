package xl

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// Worksheet describes one sheet of an open workbook. It carries no row
// data itself; call Rows to traverse.
type Worksheet struct {
	// Name is the sheet's name, unique within the workbook.
	Name string

	// Position is the sheet's 1-based position among the sheets
	// present.
	Position int

	// SheetID is the declared sheet id, which need not equal
	// Position.
	SheetID int

	relID  string
	target string
	wb     *Workbook
}

// Target returns the sheet's resolved container path.
func (ws *Worksheet) Target() string {
	return ws.target
}

// Rows opens a fresh traversal over the sheet's row data. Each call
// yields an independent iterator with its own read cursor.
func (ws *Worksheet) Rows() (*RowIterator, error) {
	rc, err := ws.wb.open(ws.target)
	if err != nil {
		return nil, err
	}
	return &RowIterator{
		ws:      ws,
		rc:      rc,
		dec:     newXMLDecoder(rc),
		state:   stateIdle,
		wantRow: 1,
	}, nil
}

type iterState int

const (
	// stateIdle: no lookahead buffered, input not yet exhausted.
	stateIdle iterState = iota
	// stateBuffered: one fully assembled future row is held.
	stateBuffered
	// stateDraining: input exhausted, declared row count not reached.
	stateDraining
	// stateDone: terminal.
	stateDone
)

// RowIterator reconstructs a sheet's dense row sequence from its
// sparse source stream. The source stores only non-empty cells and may
// omit whole rows; the iterator fills every gap with synthesized Empty
// cells and rows, so row numbers always increase by exactly 1 from 1.
//
// The source is consumed exactly once, forward-only, with at most one
// assembled row of lookahead. An iterator is not restartable and not
// safe for concurrent use; open another via Worksheet.Rows to traverse
// again.
type RowIterator struct {
	ws  *Worksheet
	rc  io.ReadCloser
	dec *xml.Decoder

	state    iterState
	wantRow  int
	numCols  int // current known column count, grows monotonically
	numRows  int // declared total rows from the used-range hint, else 0
	buffered *Row
	sawRow   bool // the used-range hint only applies before any row
	srcRow   int  // last row number seen in the source
	err      error
}

// Next returns the next row, or io.EOF once the sheet is exhausted.
// Any other error is terminal for the traversal and is returned again
// on subsequent calls.
func (it *RowIterator) Next() (*Row, error) {
	if it.err != nil {
		return nil, it.err
	}
	for {
		switch it.state {
		case stateDone:
			return nil, io.EOF

		case stateDraining:
			if it.wantRow <= it.numRows {
				row := it.emptyRow(it.wantRow)
				it.wantRow++
				return row, nil
			}
			it.state = stateDone

		case stateBuffered:
			if it.buffered.Num == it.wantRow {
				row := it.buffered
				it.buffered = nil
				it.wantRow++
				it.state = stateIdle
				return row, nil
			}
			row := it.emptyRow(it.wantRow)
			it.wantRow++
			return row, nil

		case stateIdle:
			row, err := it.readRow()
			if err != nil {
				it.fail(err)
				return nil, it.err
			}
			if row == nil {
				// Input exhausted with no row assembled.
				it.state = stateDraining
				continue
			}
			it.pad(row)
			if row.Num == it.wantRow {
				it.wantRow++
				return row, nil
			}
			it.buffered = row
			it.state = stateBuffered
			synth := it.emptyRow(it.wantRow)
			it.wantRow++
			return synth, nil
		}
	}
}

// Close releases the iterator's read cursor. The iterator is Done
// afterwards.
func (it *RowIterator) Close() error {
	it.state = stateDone
	if it.rc == nil {
		return nil
	}
	err := it.rc.Close()
	it.rc = nil
	return err
}

func (it *RowIterator) fail(err error) {
	it.err = err
	it.state = stateDone
	if it.rc != nil {
		it.rc.Close()
		it.rc = nil
	}
}

// readRow consumes source events until one row closes or input ends.
// A nil, nil return means end of input.
func (it *RowIterator) readRow() (*Row, error) {
	var row *Row
	var cell *Cell
	var text strings.Builder

	const (
		captureNone = iota
		captureValue
		captureFormula
	)
	capture := captureNone

	for {
		tok, err := it.dec.Token()
		if err == io.EOF {
			if row != nil {
				return nil, &MalformedXMLError{Path: it.ws.target, Err: io.ErrUnexpectedEOF}
			}
			return nil, nil
		}
		if err != nil {
			return nil, &MalformedXMLError{Path: it.ws.target, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "dimension":
				if !it.sawRow {
					it.setHint(attrValue(t, "ref"))
				}
			case "row":
				it.sawRow = true
				num, err := strconv.Atoi(attrValue(t, "r"))
				if err != nil || num <= it.srcRow {
					// Missing or non-increasing row number; treat the
					// source as sequential past the last row seen.
					num = it.srcRow + 1
				}
				it.srcRow = num
				row = &Row{Num: num}
			case "c":
				if row == nil {
					continue
				}
				cell = &Cell{
					Reference: attrValue(t, "r"),
					Type:      attrValue(t, "t"),
					Style:     it.ws.wb.styleCode(attrValue(t, "s")),
				}
			case "v", "t":
				if cell != nil {
					capture = captureValue
				}
			case "f":
				if cell != nil {
					capture = captureFormula
				}
			}

		case xml.CharData:
			if capture != captureNone {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t", "f":
				if cell != nil {
					if capture == captureFormula {
						cell.Formula = text.String()
					} else if capture == captureValue {
						cell.Raw += text.String()
					}
				}
				text.Reset()
				capture = captureNone
			case "c":
				if row != nil && cell != nil {
					it.appendCell(row, cell)
				}
				cell = nil
			case "row":
				if row != nil {
					return row, nil
				}
			}
		}
	}
}

// setHint pre-sizes the grid from a used-range hint like "A1:C10".
// The hint may be absent or wrong; it only ever widens what the rows
// themselves establish.
func (it *RowIterator) setHint(ref string) {
	if ref == "" {
		return
	}
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		ref = ref[i+1:]
	}
	col, rowNum, err := parseRef(ref)
	if err != nil {
		return
	}
	if col > it.numCols {
		it.numCols = col
	}
	if rowNum > it.numRows {
		it.numRows = rowNum
	}
}

// appendCell resolves one parsed cell and appends it to the row,
// synthesizing Empty cells for any skipped columns before it. The row
// slice stays dense, so the previous cell's column is its length.
func (it *RowIterator) appendCell(row *Row, cell *Cell) {
	col, _, err := parseRef(cell.Reference)
	if err != nil {
		col = len(row.Cells) + 1
		letters, lerr := IndexToLetters(col)
		if lerr != nil {
			return
		}
		cell.Reference = letters + strconv.Itoa(row.Num)
	}
	value, verr := resolveCellValue(cell.Raw, cell.Type, cell.Style, it.ws.wb.strings, it.ws.wb.DateSystem)
	if verr != nil {
		// One bad cell must not lose the sheet: degrade to an
		// Error value and keep going.
		value = Value{Kind: KindError, Text: verr.Error()}
	}
	cell.Value = value
	if col <= len(row.Cells) {
		// Out-of-order or duplicate column reference; the grid is
		// already dense up to here, so land it in its slot.
		row.Cells[col-1] = *cell
		return
	}
	for c := len(row.Cells) + 1; c < col; c++ {
		row.Cells = append(row.Cells, emptyCell(c, row.Num))
	}
	row.Cells = append(row.Cells, *cell)
}

// pad widens the row with Empty cells to the known column count, or
// widens the known count if this row is the widest yet.
func (it *RowIterator) pad(row *Row) {
	if len(row.Cells) > it.numCols {
		it.numCols = len(row.Cells)
		return
	}
	for c := len(row.Cells) + 1; c <= it.numCols; c++ {
		row.Cells = append(row.Cells, emptyCell(c, row.Num))
	}
}

func (it *RowIterator) emptyRow(num int) *Row {
	row := &Row{Num: num, Cells: make([]Cell, 0, it.numCols)}
	for c := 1; c <= it.numCols; c++ {
		row.Cells = append(row.Cells, emptyCell(c, num))
	}
	return row
}

// parseRef splits a cell address like "C7" into its column number and
// row number.
func parseRef(ref string) (col, rowNum int, err error) {
	i := 0
	for i < len(ref) && !isDigit(ref[i]) {
		i++
	}
	col, err = LettersToIndex(ref[:i])
	if err != nil {
		return 0, 0, err
	}
	rowNum, err = strconv.Atoi(ref[i:])
	if err != nil {
		return 0, 0, &InvalidFormatError{Input: ref}
	}
	return col, rowNum, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
