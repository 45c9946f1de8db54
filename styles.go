package xl

import (
	"encoding/xml"
	"io"
	"strconv"

	"golang.org/x/text/encoding/htmlindex"
)

// standardFormats holds the built-in number format codes from ISO/IEC
// 29500:2011 Part 1, section 18.8.30, keyed by numFmtId.
var standardFormats = map[string]string{
	"0":  "General",
	"1":  "0",
	"2":  "0.00",
	"3":  "#,##0",
	"4":  "#,##0.00",
	"9":  "0%",
	"10": "0.00%",
	"11": "0.00E+00",
	"12": "# ?/?",
	"13": "# ??/??",
	"14": "mm-dd-yy",
	"15": "d-mmm-yy",
	"16": "d-mmm",
	"17": "mmm-yy",
	"18": "h:mm AM/PM",
	"19": "h:mm:ss AM/PM",
	"20": "h:mm",
	"21": "h:mm:ss",
	"22": "m/d/yy h:mm",
	"37": "#,##0 ;(#,##0)",
	"38": "#,##0 ;[Red](#,##0)",
	"39": "#,##0.00;(#,##0.00)",
	"40": "#,##0.00;[Red](#,##0.00)",
	"45": "mm:ss",
	"46": "[h]:mm:ss",
	"47": "mmss.0",
	"48": "##0.0E+0",
	"49": "@",
}

// parseStyles flattens a styles entry into the per-style format-code
// list: standard codes merged with the entry's custom numFmt
// declarations, then looked up once per xf record under cellXfs so the
// slice index matches a cell's s attribute. An xf naming an unknown
// numFmtId keeps its slot as "" so later indexes stay aligned.
func parseStyles(r io.Reader) ([]string, error) {
	codes := make(map[string]string, len(standardFormats))
	for id, code := range standardFormats {
		codes[id] = code
	}

	var styles []string
	inCellXfs := false
	dec := newXMLDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return styles, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "numFmt":
				id := attrValue(t, "numFmtId")
				code := attrValue(t, "formatCode")
				if id != "" {
					codes[id] = code
				}
			case "cellXfs":
				inCellXfs = true
			case "xf":
				if inCellXfs {
					styles = append(styles, codes[attrValue(t, "numFmtId")])
				}
			}
		case xml.EndElement:
			if t.Name.Local == "cellXfs" {
				inCellXfs = false
			}
		}
	}
}

// styleCode resolves a cell's s attribute against the flattened style
// list. Anything unresolvable means no format code applies.
func (wb *Workbook) styleCode(attr string) string {
	if attr == "" {
		return ""
	}
	idx, err := strconv.Atoi(attr)
	if err != nil || idx < 0 || idx >= len(wb.styles) {
		return ""
	}
	return wb.styles[idx]
}

func attrValue(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// newXMLDecoder configures a decoder for workbook entries. Entries are
// UTF-8 in practice, but some producers declare other charsets; decode
// whatever the prolog names.
func newXMLDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return dec
}
