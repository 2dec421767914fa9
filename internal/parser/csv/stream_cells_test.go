package csv

import (
	"context"
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, input, valueCol, keyCol string, opt Options) ([]Cell, []int, error) {
	t.Helper()

	var cells []Cell
	var badLines []int
	err := StreamCells(
		context.Background(),
		io.NopCloser(strings.NewReader(input)),
		valueCol, keyCol, opt,
		func(c Cell) { cells = append(cells, c) },
		func(line int, err error) { badLines = append(badLines, line) },
	)
	return cells, badLines, err
}

func TestStreamCells_Basic(t *testing.T) {
	input := "school_code,graduation_rate\n42,87.5%\n43,#NULL!\n"

	cells, bad, err := collect(t, input, "graduation_rate", "school_code", Options{})
	if err != nil {
		t.Fatalf("StreamCells: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("unexpected row errors at lines %v", bad)
	}
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if cells[0].Key != "42" || cells[0].Value != "87.5%" {
		t.Fatalf("first cell = %+v; values must stay raw for the normalizer", cells[0])
	}
	if cells[1].Value != "#NULL!" {
		t.Fatalf("second cell = %+v", cells[1])
	}
	if cells[0].Line != 2 {
		t.Fatalf("line = %d, want 2 (header is line 1)", cells[0].Line)
	}
}

func TestStreamCells_BOMAndPaddedHeader(t *testing.T) {
	input := "\uFEFFschool_code , value\n1,2\n"

	cells, _, err := collect(t, input, "value", "school_code", Options{})
	if err != nil {
		t.Fatalf("StreamCells: %v", err)
	}
	if len(cells) != 1 || cells[0].Key != "1" {
		t.Fatalf("cells = %+v", cells)
	}
}

func TestStreamCells_MissingColumnIsError(t *testing.T) {
	input := "a,b\n1,2\n"

	if _, _, err := collect(t, input, "nope", "a", Options{}); err == nil {
		t.Fatalf("expected error for missing value column")
	}
	if _, _, err := collect(t, input, "b", "nope", Options{}); err == nil {
		t.Fatalf("expected error for missing key column")
	}
}

func TestStreamCells_ShortRowSkipped(t *testing.T) {
	input := "key,value\n1,10\n2\n3,30\n"

	cells, bad, err := collect(t, input, "value", "key", Options{})
	if err != nil {
		t.Fatalf("StreamCells: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2 (short row skipped)", len(cells))
	}
	if len(bad) != 1 || bad[0] != 3 {
		t.Fatalf("expected row error at line 3, got %v", bad)
	}
}

func TestStreamCells_Windows1252(t *testing.T) {
	// 0xE9 is é in windows-1252.
	input := "key,value\nmontr\xe9al,5\n"

	cells, _, err := collect(t, input, "value", "key", Options{Encoding: "windows-1252"})
	if err != nil {
		t.Fatalf("StreamCells: %v", err)
	}
	if len(cells) != 1 || cells[0].Key != "montréal" {
		t.Fatalf("cells = %+v", cells)
	}
}

func TestStreamCells_UnsupportedEncoding(t *testing.T) {
	if _, _, err := collect(t, "a,b\n", "b", "a", Options{Encoding: "ebcdic"}); err == nil {
		t.Fatalf("expected error for unsupported encoding")
	}
}

func TestStreamCells_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := StreamCells(ctx,
		io.NopCloser(strings.NewReader("a,b\n1,2\n")),
		"b", "a", Options{},
		func(Cell) {}, nil)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStreamCells_Semicolon(t *testing.T) {
	input := "key;value\n1;2,5\n"

	cells, _, err := collect(t, input, "value", "key", Options{Comma: ';'})
	if err != nil {
		t.Fatalf("StreamCells: %v", err)
	}
	if len(cells) != 1 || cells[0].Value != "2,5" {
		t.Fatalf("cells = %+v", cells)
	}
}
