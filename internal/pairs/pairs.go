// Package pairs reads and writes plain tab-separated training pair files:
//
//	query \t positive \t negative
//	query \t positive \t negative \t positive_score \t negative_score
package pairs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Row is one line of a pair file. Scores are zero in 3-column files.
type Row struct {
	Query         string
	Positive      string
	Negative      string
	PositiveScore float64
	NegativeScore float64
}

// Dataset is a loaded pair file.
type Dataset struct {
	rows      []Row
	hasScores bool
}

// Load reads a pair file. Lines with fewer than three fields, or of at most
// one character, are skipped. Fields are trimmed. A file is scored when its
// first kept row has five fields; a score that does not parse is a decode
// error.
func Load(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	d := &Dataset{}
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading line %d: %w", lineNo, err)
		}
		if row, ok, perr := parseLine(line, lineNo); perr != nil {
			return nil, perr
		} else if ok {
			if len(d.rows) == 0 {
				d.hasScores = row.scored
			}
			d.rows = append(d.rows, row.Row)
		}
		if errors.Is(err, io.EOF) {
			return d, nil
		}
	}
}

// LoadFile opens name in store and reads it with Load.
func LoadFile(ctx context.Context, store storage.Store, name string) (*Dataset, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "pairs.LoadFile", "%v", err)
	}
	defer rc.Close()
	return Load(rc)
}

type parsedRow struct {
	Row
	scored bool
}

func parseLine(line string, lineNo int) (parsedRow, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) <= 1 {
		return parsedRow{}, false, nil
	}
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return parsedRow{}, false, nil
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	row := parsedRow{Row: Row{Query: fields[0], Positive: fields[1], Negative: fields[2]}}
	if len(fields) >= 5 {
		pos, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return parsedRow{}, false, dserrors.Newf(dserrors.ErrDecode, "pairs.Load", "line %d: positive score %q", lineNo, fields[3])
		}
		neg, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return parsedRow{}, false, dserrors.Newf(dserrors.ErrDecode, "pairs.Load", "line %d: negative score %q", lineNo, fields[4])
		}
		row.PositiveScore, row.NegativeScore, row.scored = pos, neg, true
	}
	return row, true, nil
}

func (d *Dataset) Size() int {
	return len(d.rows)
}

// HasScores reports whether the file carried scores.
func (d *Dataset) HasScores() bool {
	return d.hasScores
}

func (d *Dataset) Get(i int) (Row, error) {
	if i < 0 || i >= len(d.rows) {
		return Row{}, dserrors.Newf(dserrors.ErrOutOfRange, "pairs.Get", "index %d outside [0, %d)", i, len(d.rows))
	}
	return d.rows[i], nil
}

// Writer appends sampled pairs as 5-column rows.
type Writer struct {
	w    *bufio.Writer
	rows int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends p. Tabs and line breaks inside texts become spaces so the
// row reads back as one line of five fields.
func (w *Writer) Write(p sampler.Pair) error {
	_, err := fmt.Fprintf(w.w, "%s\t%s\t%s\t%s\t%s\n",
		clean(p.Query), clean(p.Positive), clean(p.Negative),
		strconv.FormatFloat(p.PositiveScore, 'g', -1, 64),
		strconv.FormatFloat(p.NegativeScore, 'g', -1, 64),
	)
	if err != nil {
		return fmt.Errorf("writing pair row %d: %w", w.rows, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

var cleaner = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func clean(s string) string {
	return cleaner.Replace(s)
}
