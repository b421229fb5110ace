package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

type Format string

const (
	TXT  Format = "txt"
	CSV  Format = "csv"
	XML  Format = "xml"
	JSON Format = "json"
	YAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "txt", "text":
		return TXT, nil
	case "csv":
		return CSV, nil
	case "xml":
		return XML, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", logerr.Errorf(logerr.KindInvalidArgument, "export.parse_format", "unknown export format %q", s)
}

// Options apply to the tabular formats (TXT and CSV).
type Options struct {
	// Delimiter separates fields; defaults to "," for CSV and "\t" for TXT.
	// CSV uses only the first rune.
	Delimiter         string
	IncludeFieldNames bool
}

var baseColumns = []string{"id", "timestamp", "level", "message", "func", "file", "line", "thread_id"}
var sourceColumns = []string{"source_id", "source_uuid", "source_name"}

func columns(entries []model.LogEntry) []string {
	for _, e := range entries {
		if e.HasSource() {
			return append(append([]string(nil), baseColumns...), sourceColumns...)
		}
	}
	return baseColumns
}

func values(e model.LogEntry, n int) []string {
	row := []string{
		strconv.FormatInt(e.ID, 10),
		e.Timestamp,
		e.Level,
		e.Message,
		e.Function,
		e.File,
		strconv.FormatInt(int64(e.Line), 10),
		e.ThreadID,
	}
	if n > len(baseColumns) {
		row = append(row, strconv.FormatInt(e.SourceID, 10), e.SourceUUID, e.SourceName)
	}
	return row
}

type xmlDocument struct {
	XMLName xml.Name         `xml:"logs"`
	Entries []model.LogEntry `xml:"log"`
}

// Write serializes entries to w in the given format.
func Write(w io.Writer, format Format, entries []model.LogEntry, opts Options) error {
	if entries == nil {
		entries = []model.LogEntry{}
	}
	var err error
	switch format {
	case TXT:
		err = writeText(w, entries, opts)
	case CSV:
		err = writeCSV(w, entries, opts)
	case XML:
		if _, err = io.WriteString(w, xml.Header); err == nil {
			enc := xml.NewEncoder(w)
			enc.Indent("", "  ")
			if err = enc.Encode(xmlDocument{Entries: entries}); err == nil {
				_, err = io.WriteString(w, "\n")
			}
		}
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(entries)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(entries); err == nil {
			err = enc.Close()
		}
	default:
		return logerr.Errorf(logerr.KindInvalidArgument, "export.write", "unknown export format %q", format)
	}
	if err != nil {
		return logerr.New(logerr.KindDriver, "export.write", err)
	}
	return nil
}

func writeText(w io.Writer, entries []model.LogEntry, opts Options) error {
	delim := opts.Delimiter
	if delim == "" {
		delim = "\t"
	}
	bw := bufio.NewWriter(w)
	cols := columns(entries)
	if opts.IncludeFieldNames {
		fmt.Fprintln(bw, strings.Join(cols, delim))
	}
	for _, e := range entries {
		fmt.Fprintln(bw, strings.Join(values(e, len(cols)), delim))
	}
	return bw.Flush()
}

func writeCSV(w io.Writer, entries []model.LogEntry, opts Options) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != "" {
		r, _ := utf8.DecodeRuneInString(opts.Delimiter)
		cw.Comma = r
	}
	cols := columns(entries)
	if opts.IncludeFieldNames {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := cw.Write(values(e, len(cols))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile writes entries to path, creating parent directories as needed.
func ToFile(path string, format Format, entries []model.LogEntry, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return logerr.New(logerr.KindDriver, "export.to_file", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return logerr.New(logerr.KindDriver, "export.to_file", err)
	}
	if err := Write(f, format, entries, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return logerr.New(logerr.KindDriver, "export.to_file", err)
	}
	return nil
}
