package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/xlprotips/xl"
)

var version = "dev"

type quotingMode int

const (
	quotingNone quotingMode = iota
	quotingMinimal
	quotingNonNumeric
	quotingAll
)

type outputFormat int

const (
	formatCSV outputFormat = iota
	formatMarkdown
)

type options struct {
	allSheets      bool
	sheetPos       int
	sheetName      string
	maxRows        int
	delimiter      rune
	lineTerminator string
	dateFormat     string
	floatFormat    string
	outputEncoding string
	ignoreEmpty    bool
	escape         bool
	sheetDelimiter string
	quoting        quotingMode
	format         outputFormat
	progress       bool
}

type field struct {
	text      string
	isNumeric bool
}

type csvWriter struct {
	w              io.Writer
	delimiter      rune
	lineTerminator string
	quoting        quotingMode
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	setupLogging(stderr)
	defaults := loadDefaults()

	fs := flag.NewFlagSet("xlsx2csv", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := fs.Bool("v", false, "show version")
	fs.BoolVar(showVersion, "version", false, "show version")

	allSheets := fs.Bool("a", false, "export all sheets")
	fs.BoolVar(allSheets, "all", false, "export all sheets")

	sheetPos := fs.Int("s", 0, "sheet position to convert, 1-based")
	fs.IntVar(sheetPos, "sheet", 0, "sheet position to convert, 1-based")

	sheetName := fs.String("n", "", "sheet name to convert")
	fs.StringVar(sheetName, "sheetname", "", "sheet name to convert")

	maxRows := fs.Int("r", 0, "maximum rows to output per sheet, 0 for all")
	fs.IntVar(maxRows, "rows", 0, "maximum rows to output per sheet, 0 for all")

	delimiterFlag := fs.String("d", defaults.GetString("delimiter"), "delimiter")
	fs.StringVar(delimiterFlag, "delimiter", defaults.GetString("delimiter"), "delimiter")

	lineTerminatorFlag := fs.String("l", defaults.GetString("lineterminator"), "line terminator")
	fs.StringVar(lineTerminatorFlag, "lineterminator", defaults.GetString("lineterminator"), "line terminator")

	dateFormat := fs.String("f", defaults.GetString("dateformat"), "override date/time format")
	fs.StringVar(dateFormat, "dateformat", defaults.GetString("dateformat"), "override date/time format")

	floatFormat := fs.String("floatformat", defaults.GetString("floatformat"), "override float format")

	outputEncoding := fs.String("c", defaults.GetString("outputencoding"), "output encoding")
	fs.StringVar(outputEncoding, "outputencoding", defaults.GetString("outputencoding"), "output encoding")

	ignoreEmpty := fs.Bool("i", false, "skip empty lines")
	fs.BoolVar(ignoreEmpty, "ignoreempty", false, "skip empty lines")

	escape := fs.Bool("e", false, "escape \\r\\n\\t characters")
	fs.BoolVar(escape, "escape", false, "escape \\r\\n\\t characters")

	sheetDelimiter := fs.String("p", defaults.GetString("sheetdelimiter"), "sheet delimiter")
	fs.StringVar(sheetDelimiter, "sheetdelimiter", defaults.GetString("sheetdelimiter"), "sheet delimiter")

	quotingFlag := fs.String("q", defaults.GetString("quoting"), "field quoting")
	fs.StringVar(quotingFlag, "quoting", defaults.GetString("quoting"), "field quoting")

	formatFlag := fs.String("format", defaults.GetString("format"), "output format, 'csv' or 'markdown'")

	progress := fs.Bool("progress", false, "show row progress on stderr")

	fs.Usage = func() {
		fmt.Fprint(stderr, usageText())
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		return 2
	}

	if *sheetName != "" && (*allSheets || *sheetPos > 0) {
		fmt.Fprintln(stderr, "cannot combine --sheetname with --sheet or --all")
		return 2
	}

	delimiter, err := parseDelimiter(*delimiterFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid delimiter: %v\n", err)
		return 2
	}

	lineTerminator := *lineTerminatorFlag
	if lineTerminator == "" {
		lineTerminator = osLineSep()
	} else {
		lineTerminator, err = parseEscapedString(lineTerminator)
		if err != nil {
			fmt.Fprintf(stderr, "invalid line terminator: %v\n", err)
			return 2
		}
	}

	quoting, err := parseQuoting(*quotingFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid quoting: %v\n", err)
		return 2
	}

	format, err := parseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid format: %v\n", err)
		return 2
	}

	opts := options{
		allSheets:      *allSheets,
		sheetPos:       *sheetPos,
		sheetName:      *sheetName,
		maxRows:        *maxRows,
		delimiter:      delimiter,
		lineTerminator: lineTerminator,
		dateFormat:     *dateFormat,
		floatFormat:    *floatFormat,
		outputEncoding: *outputEncoding,
		ignoreEmpty:    *ignoreEmpty,
		escape:         *escape,
		sheetDelimiter: *sheetDelimiter,
		quoting:        quoting,
		format:         format,
		progress:       *progress,
	}

	inputPath := rest[0]
	outputPath := ""
	if len(rest) > 1 {
		outputPath = rest[1]
	}

	if err := convert(inputPath, outputPath, opts, stdin, stdout, stderr); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// setupLogging wires zerolog: console output in dev, level from the
// LOGLEVEL environment variable, .env honored if present.
func setupLogging(stderr io.Writer) {
	_ = godotenv.Load()

	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339})
	}

	switch strings.ToLower(os.Getenv("LOGLEVEL")) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// loadDefaults reads optional flag defaults from xlsx2csv.yaml in the
// working directory or $HOME/.config/xlsx2csv. Missing config is not
// an error; built-in defaults apply.
func loadDefaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("delimiter", ",")
	v.SetDefault("lineterminator", "")
	v.SetDefault("dateformat", "")
	v.SetDefault("floatformat", "")
	v.SetDefault("outputencoding", "utf-8")
	v.SetDefault("sheetdelimiter", "--------")
	v.SetDefault("quoting", "minimal")
	v.SetDefault("format", "csv")

	v.SetConfigName("xlsx2csv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "xlsx2csv"))
	}
	if err := v.ReadInConfig(); err == nil {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("loaded config defaults")
	}
	return v
}

func usageText() string {
	return `Usage:

 xlsx2csv [-h] [-v] [-a] [-s SHEET] [-n SHEETNAME] [-r ROWS]
          [-d DELIMITER] [-l LINETERMINATOR] [-f DATEFORMAT]
          [--floatformat FLOATFORMAT] [-c OUTPUTENCODING] [-i] [-e]
          [-p SHEETDELIMITER] [-q QUOTING] [--format FORMAT]
          [--progress]
          xlsxfile [outfile]
positional arguments:

  xlsxfile              xlsx file path, use '-' to read from STDIN
  outfile               output file path (default: STDOUT)
optional arguments:

  -h, --help            show this help message and exit
  -v, --version         show program's version number and exit
  -a, --all             export all sheets
  -s SHEET, --sheet SHEET
                        sheet position to convert, 1-based (default: 1)
  -n SHEETNAME, --sheetname SHEETNAME
                        sheet name to convert
  -r ROWS, --rows ROWS  maximum rows to output per sheet, 0 for all
  -d DELIMITER, --delimiter DELIMITER
                        column delimiter, 'tab' or 'x09' for a tab
                        (default: comma ',')
  -l LINETERMINATOR, --lineterminator LINETERMINATOR
                        line terminator, '\n' '\r\n' or '\r'
                        (default: os.linesep)
  -f DATEFORMAT, --dateformat DATEFORMAT
                        override date/time format (ex. %Y/%m/%d)
  --floatformat FLOATFORMAT
                        override float format (ex. %.15f)
  -c OUTPUTENCODING, --outputencoding OUTPUTENCODING
                        output encoding, any IANA name (default: utf-8)
  -i, --ignoreempty     skip empty lines
  -e, --escape          escape \r\n\t characters
  -p SHEETDELIMITER, --sheetdelimiter SHEETDELIMITER
                        delimiter line between sheets, '' for none
                        (default: '--------')
  -q QUOTING, --quoting QUOTING
                        field quoting, 'none' 'minimal' 'nonnumeric' or
                        'all' (default: 'minimal')
  --format FORMAT       output format, 'csv' or 'markdown'
                        (default: 'csv')
  --progress            show row progress on stderr
Defaults for most flags may also be set in xlsx2csv.yaml.
`
}

func convert(inputPath, outputPath string, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	wb, err := openInput(inputPath, stdin)
	if err != nil {
		return err
	}
	defer wb.Close()

	sheets, err := selectSheets(wb, opts)
	if err != nil {
		return err
	}

	out := stdout
	var file *os.File
	if outputPath != "" {
		file, err = os.Create(outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	buffered := bufio.NewWriter(out)
	encoded, err := encodeOutput(buffered, opts.outputEncoding)
	if err != nil {
		return err
	}

	if err := writeSheets(encoded, sheets, opts, stderr); err != nil {
		return err
	}
	return buffered.Flush()
}

func openInput(inputPath string, stdin io.Reader) (*xl.Workbook, error) {
	if inputPath == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return xl.OpenReader(bytes.NewReader(content), int64(len(content)))
	}
	return xl.OpenWorkbook(inputPath)
}

func selectSheets(wb *xl.Workbook, opts options) ([]*xl.Worksheet, error) {
	if opts.sheetName != "" {
		ws, err := wb.SheetByName(opts.sheetName)
		if err != nil {
			return nil, err
		}
		return []*xl.Worksheet{ws}, nil
	}

	if opts.allSheets {
		if wb.NumSheets() == 0 {
			return nil, fmt.Errorf("no sheets found")
		}
		sheets := make([]*xl.Worksheet, 0, wb.NumSheets())
		for pos := 1; pos <= wb.NumSheets(); pos++ {
			ws, err := wb.SheetByPosition(pos)
			if err != nil {
				return nil, err
			}
			sheets = append(sheets, ws)
		}
		return sheets, nil
	}

	pos := opts.sheetPos
	if pos == 0 {
		pos = 1
	}
	ws, err := wb.SheetByPosition(pos)
	if err != nil {
		return nil, err
	}
	return []*xl.Worksheet{ws}, nil
}

// encodeOutput wraps w so everything written comes out in the named
// encoding. utf-8 passes through untouched.
func encodeOutput(w io.Writer, name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return w, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported output encoding: %s", name)
	}
	return enc.NewEncoder().Writer(w), nil
}

func writeSheets(w io.Writer, sheets []*xl.Worksheet, opts options, stderr io.Writer) error {
	for i, ws := range sheets {
		if i > 0 && opts.sheetDelimiter != "" {
			if _, err := fmt.Fprint(w, opts.sheetDelimiter, opts.lineTerminator); err != nil {
				return err
			}
		}
		log.Debug().Str("sheet", ws.Name).Int("position", ws.Position).Msg("converting sheet")
		if err := writeSheet(w, ws, opts, stderr); err != nil {
			return fmt.Errorf("sheet %q: %w", ws.Name, err)
		}
	}
	return nil
}

func writeSheet(w io.Writer, ws *xl.Worksheet, opts options, stderr io.Writer) error {
	it, err := ws.Rows()
	if err != nil {
		return err
	}
	defer it.Close()

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription(ws.Name),
			progressbar.OptionSpinnerType(14),
		)
		defer bar.Finish()
	}

	var write func([]field) error
	switch opts.format {
	case formatMarkdown:
		mw := &markdownWriter{w: w, lineTerminator: opts.lineTerminator}
		write = mw.writeRow
	default:
		cw := &csvWriter{
			w:              w,
			delimiter:      opts.delimiter,
			lineTerminator: opts.lineTerminator,
			quoting:        opts.quoting,
		}
		write = cw.writeRow
	}

	written := 0
	for {
		if opts.maxRows > 0 && written >= opts.maxRows {
			return nil
		}
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}

		fields := make([]field, len(row.Cells))
		allEmpty := true
		for i, cell := range row.Cells {
			f := formatCell(cell, opts)
			if f.text != "" {
				allEmpty = false
			}
			fields[i] = f
		}
		if opts.ignoreEmpty && allEmpty {
			continue
		}
		if err := write(fields); err != nil {
			return err
		}
		written++
	}
}

func formatCell(cell xl.Cell, opts options) field {
	v := cell.Value
	switch v.Kind {
	case xl.KindNumber:
		text := strconv.FormatFloat(v.Number, 'g', -1, 64)
		if opts.floatFormat != "" {
			text = fmt.Sprintf(opts.floatFormat, v.Number)
		}
		return field{text: maybeEscape(text, opts.escape), isNumeric: true}
	case xl.KindDate, xl.KindDateTime, xl.KindTime:
		if opts.dateFormat != "" {
			return field{text: maybeEscape(strftime(v.Time, opts.dateFormat), opts.escape)}
		}
		return field{text: maybeEscape(v.String(), opts.escape)}
	default:
		return field{text: maybeEscape(v.String(), opts.escape)}
	}
}

func parseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "tab", "x09":
		return '\t', nil
	}
	if value == "" {
		return 0, fmt.Errorf("delimiter cannot be empty")
	}
	if strings.HasPrefix(value, "x") && len(value) == 3 {
		decoded, err := strconv.ParseUint(value[1:], 16, 8)
		if err != nil {
			return 0, err
		}
		return rune(decoded), nil
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}

func parseEscapedString(value string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' {
			b.WriteByte(value[i])
			continue
		}
		if i+1 >= len(value) {
			return "", fmt.Errorf("dangling escape")
		}
		i++
		switch value[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("unknown escape \\%c", value[i])
		}
	}
	return b.String(), nil
}

func parseQuoting(value string) (quotingMode, error) {
	switch strings.ToLower(value) {
	case "none":
		return quotingNone, nil
	case "minimal":
		return quotingMinimal, nil
	case "nonnumeric":
		return quotingNonNumeric, nil
	case "all":
		return quotingAll, nil
	default:
		return quotingMinimal, fmt.Errorf("unsupported quoting: %s", value)
	}
}

func parseFormat(value string) (outputFormat, error) {
	switch strings.ToLower(value) {
	case "csv", "":
		return formatCSV, nil
	case "markdown", "md":
		return formatMarkdown, nil
	default:
		return formatCSV, fmt.Errorf("unsupported format: %s", value)
	}
}

func osLineSep() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

func maybeEscape(value string, enabled bool) string {
	if !enabled || value == "" {
		return value
	}
	replacer := strings.NewReplacer("\r", "\\r", "\n", "\\n", "\t", "\\t")
	return replacer.Replace(value)
}

func (cw *csvWriter) writeRow(fields []field) error {
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteRune(cw.delimiter)
		}
		buf.WriteString(cw.formatField(f))
	}
	buf.WriteString(cw.lineTerminator)
	_, err := cw.w.Write(buf.Bytes())
	return err
}

func (cw *csvWriter) formatField(f field) string {
	if !cw.needsQuote(f) {
		return f.text
	}
	escaped := strings.ReplaceAll(f.text, `"`, `""`)
	return `"` + escaped + `"`
}

func (cw *csvWriter) needsQuote(f field) bool {
	switch cw.quoting {
	case quotingAll:
		return true
	case quotingNonNumeric:
		return !f.isNumeric
	case quotingMinimal:
		return strings.ContainsRune(f.text, cw.delimiter) || strings.ContainsAny(f.text, "\"\r\n")
	default:
		return false
	}
}

// markdownWriter renders rows as a pipe table, emitting the header
// separator after the first row.
type markdownWriter struct {
	w              io.Writer
	lineTerminator string
	wroteHeader    bool
}

func (mw *markdownWriter) writeRow(fields []field) error {
	var buf bytes.Buffer
	buf.WriteString("|")
	for _, f := range fields {
		buf.WriteString(" ")
		buf.WriteString(escapeMarkdown(f.text))
		buf.WriteString(" |")
	}
	buf.WriteString(mw.lineTerminator)

	if !mw.wroteHeader {
		mw.wroteHeader = true
		buf.WriteString("|")
		for range fields {
			buf.WriteString(" --- |")
		}
		buf.WriteString(mw.lineTerminator)
	}

	_, err := mw.w.Write(buf.Bytes())
	return err
}

func escapeMarkdown(value string) string {
	replacer := strings.NewReplacer("|", "\\|", "\r\n", " ", "\n", " ", "\r", " ")
	return replacer.Replace(value)
}

// strftime renders t using the strftime-style directives the Python
// original accepted for --dateformat.
func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case '%':
			b.WriteByte('%')
		case 'Y':
			b.WriteString(t.Format("2006"))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'd':
			b.WriteString(t.Format("02"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'M':
			b.WriteString(t.Format("04"))
		case 'S':
			b.WriteString(t.Format("05"))
		case 'b':
			b.WriteString(t.Format("Jan"))
		case 'B':
			b.WriteString(t.Format("January"))
		case 'a':
			b.WriteString(t.Format("Mon"))
		case 'A':
			b.WriteString(t.Format("Monday"))
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
