// Package csvrows turns an uploaded CSV file into header-keyed import rows.
//
// The reader chain handles the usual spreadsheet-export problems without
// loading the file into memory:
//
//   - a UTF-8 byte order mark from Windows tools is dropped
//   - invalid UTF-8 sequences are replaced with '?'
//   - files over the size limit fail with ErrFileTooLarge
//
// The first non-blank line is the header row. Blank lines are skipped and
// cells are trimmed.
package csvrows

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
)

var (
	// ErrEmptyFile means the input had no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge means the input exceeded the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidCSV wraps parse failures from the csv reader.
	ErrInvalidCSV = errors.New("invalid csv")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRows parses r into rows keyed by the header cells. A maxBytes of zero
// or less disables the size limit.
func ReadRows(r io.Reader, maxBytes int64) ([]core.ImportRow, error) {
	src := io.Reader(newSanitizer(skipBOM(r)))
	var limited *limitReader
	if maxBytes > 0 {
		limited = &limitReader{r: src, remaining: maxBytes}
		src = limited
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var header []string
	rows := []core.ImportRow{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if limited != nil && limited.exceeded {
				return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		if isBlank(record) {
			continue
		}

		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = core.CleanCell(h)
			}
			continue
		}

		row := make(core.ImportRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			row[name] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}

	if limited != nil && limited.exceeded {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	if header == nil {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// limitReader fails once more than remaining bytes have been read.
type limitReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrFileTooLarge
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrFileTooLarge
	}
	return n, err
}
