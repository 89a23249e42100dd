// Package loader turns a tabular document into records the splitter can chunk.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"finance-rag-be/pkg/rag/ragerr"
)

// Record is one row of the source document rendered as "header: value" lines.
type Record struct {
	Content  string
	Metadata map[string]string
}

type Loader interface {
	Load(ref string) ([]Record, error)
}

type CSVLoader struct {
	Delimiter rune
}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{Delimiter: ','}
}

// Load reads every row of the CSV file at ref. Any malformed input is a
// *ragerr.DocumentParseError.
func (l *CSVLoader) Load(ref string) ([]Record, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, &ragerr.DocumentParseError{Ref: ref, Reason: "cannot open document", Err: err}
	}
	defer f.Close()

	return l.Read(ref, f)
}

// Read parses CSV from r. ref is only used for metadata and error messages.
func (l *CSVLoader) Read(ref string, r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	if l.Delimiter != 0 {
		reader.Comma = l.Delimiter
	}
	reader.FieldsPerRecord = 0 // every row must match the header width
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ragerr.DocumentParseError{Ref: ref, Reason: "document is empty"}
	}
	if err != nil {
		return nil, &ragerr.DocumentParseError{Ref: ref, Reason: "cannot read header", Err: err}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if columns[i] == "" {
			return nil, &ragerr.DocumentParseError{Ref: ref, Reason: fmt.Sprintf("header column %d is empty", i+1)}
		}
	}

	var records []Record
	for row := 0; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ragerr.DocumentParseError{Ref: ref, Reason: fmt.Sprintf("row %d is malformed", row+1), Err: err}
		}

		lines := make([]string, len(columns))
		for i, col := range columns {
			lines[i] = col + ": " + strings.TrimSpace(fields[i])
		}
		records = append(records, Record{
			Content: strings.Join(lines, "\n"),
			Metadata: map[string]string{
				"source": ref,
				"row":    strconv.Itoa(row),
			},
		})
	}

	if len(records) == 0 {
		return nil, &ragerr.DocumentParseError{Ref: ref, Reason: "document has no rows"}
	}
	return records, nil
}
