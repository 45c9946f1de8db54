package xl

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the closed set of cell value variants.
type Kind int

const (
	KindEmpty Kind = iota
	KindBool
	KindNumber
	KindString
	KindDate
	KindDateTime
	KindTime
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the cell value variants. Kind selects
// which payload field is meaningful: Bool for KindBool, Number for
// KindNumber, Text for KindString and KindError, Time for KindDate,
// KindDateTime and KindTime. KindEmpty carries nothing.
//
// String payloads resolved from the shared-string table alias the
// workbook's copy rather than duplicating it; Go strings are immutable
// so callers only ever observe content.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Text   string
	Time   time.Time
}

// String renders the value for display.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindString, KindError:
		return v.Text
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindDateTime:
		return v.Time.Format("2006-01-02 15:04:05")
	case KindTime:
		return v.Time.Format("15:04:05")
	default:
		return ""
	}
}

// IsEmpty reports whether the value is the Empty variant.
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// Cell is one cell of a row.
type Cell struct {
	// Value is the decoded, typed value.
	Value Value

	// Formula is the cell's formula text, "" if the cell has none.
	// Formulas are carried as text only, never evaluated.
	Formula string

	// Reference is the cell's address, e.g. "C7".
	Reference string

	// Style is the resolved number-format code, "" if none applied.
	Style string

	// Type is the raw declared type tag ("s", "str", "b", ...), "" if
	// the cell declared none.
	Type string

	// Raw is the cell's text exactly as found in the source.
	Raw string
}

// Row is a dense, 1-based run of cells: Cells[0] is column A, and
// every column up to the worksheet's current known width is present,
// skipped source cells included as Empty.
type Row struct {
	Num   int
	Cells []Cell
}

func emptyCell(col, rowNum int) Cell {
	letters, _ := IndexToLetters(col)
	return Cell{
		Value:     Value{Kind: KindEmpty},
		Reference: letters + strconv.Itoa(rowNum),
	}
}

// resolveCellValue decides which value variant a cell's raw text
// produces, from its declared type tag and resolved format code.
// First match wins:
//
//	"s"              shared-string index; lookup misses fall back to
//	                 the raw text as literal content
//	"str"/"inlineStr" literal string
//	"b"              boolean, "0" false, anything else true
//	"bl"             declared blank
//	"e"              error code string
//	date-ish style   date serial, decoded per the workbook date system
//	otherwise        64-bit float
//
// Cell-level failures come back as errors; the row decoder degrades
// them to Error values so one bad cell never loses the rest of a
// sheet.
func resolveCellValue(raw, typeTag, styleCode string, shared []string, system DateSystem) (Value, error) {
	switch typeTag {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || idx < 0 || idx >= len(shared) {
			// Unresolvable index: keep the raw text as literal
			// content rather than failing the row.
			return Value{Kind: KindString, Text: raw}, nil
		}
		return Value{Kind: KindString, Text: shared[idx]}, nil
	case "str", "inlineStr":
		return Value{Kind: KindString, Text: raw}, nil
	case "b":
		return Value{Kind: KindBool, Bool: raw != "0"}, nil
	case "bl":
		return Value{Kind: KindEmpty}, nil
	case "e":
		return Value{Kind: KindError, Text: raw}, nil
	}
	if raw == "" {
		return Value{Kind: KindEmpty}, nil
	}
	number, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, &InvalidNumericLiteralError{Raw: raw}
	}
	if isDateStyle(styleCode) {
		return SerialToValue(number, system)
	}
	return Value{Kind: KindNumber, Number: number}, nil
}

// isDateStyle is the inherited substring heuristic over format codes.
// The "Red" exclusion keeps conditional-color codes like
// "#,##0;[Red](#,##0)" from reading as dates. The heuristic can still
// false-positive on any non-date code containing m or y; that behavior
// is kept for compatibility.
func isDateStyle(code string) bool {
	if code == "d" {
		return true
	}
	if strings.Contains(code, "d") && !strings.Contains(code, "Red") {
		return true
	}
	return strings.Contains(code, "m") || strings.Contains(code, "y")
}
