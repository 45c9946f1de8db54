package xl

import "fmt"

// OutOfRangeError indicates a column number outside [1, MaxColumns].
type OutOfRangeError struct {
	Value string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("column out of range: %s", e.Value)
}

// InvalidFormatError indicates a column address containing characters
// outside A-Z.
type InvalidFormatError struct {
	Input string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid column address: %q", e.Input)
}

// InvalidDateSerialError indicates serial 60 under the 1900 date
// system. Excel treats 1900 as a leap year and encodes the
// non-existent 1900-02-29 as 60; that serial cannot be converted to a
// real date.
type InvalidDateSerialError struct {
	Serial float64
}

func (e *InvalidDateSerialError) Error() string {
	return fmt.Sprintf("serial %g is 1900-02-29, which does not exist", e.Serial)
}

// InvalidNumericLiteralError indicates cell text that should have been
// a number but did not parse as one.
type InvalidNumericLiteralError struct {
	Raw string
}

func (e *InvalidNumericLiteralError) Error() string {
	return fmt.Sprintf("invalid numeric literal: %q", e.Raw)
}

// SheetNotFoundError indicates a sheet lookup by name or position that
// matched nothing in the workbook.
type SheetNotFoundError struct {
	Name     string
	Position int
}

func (e *SheetNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no sheet named %q", e.Name)
	}
	return fmt.Sprintf("no sheet at position %d", e.Position)
}

// MissingEntryError indicates a required entry absent from the
// workbook container.
type MissingEntryError struct {
	Path string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("missing container entry: %s", e.Path)
}

// MalformedXMLError indicates that an entry's markup could not be
// tokenized. Fatal for the traversal it occurred in.
type MalformedXMLError struct {
	Path string
	Err  error
}

func (e *MalformedXMLError) Error() string {
	return fmt.Sprintf("malformed xml in %s: %v", e.Path, e.Err)
}

func (e *MalformedXMLError) Unwrap() error {
	return e.Err
}
