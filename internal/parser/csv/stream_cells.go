// Package csv streams (key, value) cells out of pregenerated indicator CSV
// files.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Options control CSV reading behavior.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Encoding names the source byte encoding: "" or "utf-8" pass through,
	// "windows-1252" and "latin-1" are decoded before parsing. Spreadsheet
	// exports from the legacy portal arrive in windows-1252.
	Encoding string
	// LazyQuotes is passed through to the csv reader.
	LazyQuotes bool
}

// Cell is one (key, value) pair read from a data row.
type Cell struct {
	// Line is the 1-based record number, header included.
	Line  int
	Key   string
	Value string
}

// StreamCells reads src and emits one Cell per data row, pairing the
// valueColumn cell with the keyColumn cell.
//
// Header matching is exact after trimming edge whitespace and stripping a
// UTF-8 BOM from the first field. A missing valueColumn or keyColumn is an
// error; a malformed data row is reported via onErr (when non-nil) and
// skipped so the rest of the file still loads.
//
// Values are emitted raw apart from edge-whitespace trimming; scrubbing and
// classification belong to the normalizer downstream.
//
// On ctx cancellation the context error is returned.
func StreamCells(
	ctx context.Context,
	src io.ReadCloser,
	valueColumn, keyColumn string,
	opt Options,
	emit func(Cell),
	onErr func(line int, err error),
) error {
	defer src.Close()

	r, err := decodeReader(src, opt.Encoding)
	if err != nil {
		return err
	}

	comma := opt.Comma
	if comma == 0 {
		comma = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	valIx, keyIx := -1, -1
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		switch h {
		case valueColumn:
			valIx = i
		case keyColumn:
			keyIx = i
		}
	}
	if valIx < 0 {
		return fmt.Errorf("column %q not found in header", valueColumn)
	}
	if keyIx < 0 {
		return fmt.Errorf("key column %q not found in header", keyColumn)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if valIx >= len(rec) || keyIx >= len(rec) {
			if onErr != nil {
				onErr(line, fmt.Errorf("row has %d fields, need %d", len(rec), max(valIx, keyIx)+1))
			}
			continue
		}

		emit(Cell{
			Line:  line,
			Key:   strings.TrimSpace(rec[keyIx]),
			Value: strings.TrimSpace(rec[valIx]),
		})
	}
}

// decodeReader wraps r with a charset decoder when the source is not UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
