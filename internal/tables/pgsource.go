package tables

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// rowScanner is the subset of *sql.Rows the folding code needs.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PGSource reads qrels and candidate scores from PostgreSQL tables with
// columns (query_id, doc_id, relevance) and (query_id, doc_id, score). Id
// columns may be text or integer.
type PGSource struct {
	db          Queryer
	qrelsTable  string
	scoresTable string
	logger      *slog.Logger
}

func NewPGSource(db Queryer, qrelsTable, scoresTable string) *PGSource {
	return &PGSource{
		db:          db,
		qrelsTable:  qrelsTable,
		scoresTable: scoresTable,
		logger:      slog.Default().With("component", "pg-tables"),
	}
}

// LoadQrels reads the whole qrels table.
func (s *PGSource) LoadQrels(ctx context.Context) (*QrelsTable, error) {
	query := fmt.Sprintf("SELECT query_id, doc_id, relevance FROM %s", pq.QuoteIdentifier(s.qrelsTable))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.PGSource.LoadQrels", "querying %s: %v", s.qrelsTable, err)
	}
	defer rows.Close()
	t, err := foldQrels(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("qrels loaded", "table", s.qrelsTable, "queries", t.Len())
	return t, nil
}

// LoadScores reads the whole scores table. Rows are ordered by query id and
// then by descending score so candidate order is stable across loads.
func (s *PGSource) LoadScores(ctx context.Context) (*ScoreTable, error) {
	query := fmt.Sprintf("SELECT query_id, doc_id, score FROM %s ORDER BY query_id, score DESC, doc_id",
		pq.QuoteIdentifier(s.scoresTable))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.PGSource.LoadScores", "querying %s: %v", s.scoresTable, err)
	}
	defer rows.Close()
	t, err := foldScores(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("scores loaded", "table", s.scoresTable, "queries", t.Len())
	return t, nil
}

func foldQrels(rows rowScanner) (*QrelsTable, error) {
	b := NewQrelsTableBuilder()
	for rows.Next() {
		var (
			q, d any
			rel  int
		)
		if err := rows.Scan(&q, &d, &rel); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldQrels", "scanning row: %v", err)
		}
		if err := b.Add(q, d, rel); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldQrels", "%v", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldQrels", "iterating rows: %v", err)
	}
	return b.Build(), nil
}

func foldScores(rows rowScanner) (*ScoreTable, error) {
	b := NewScoreTableBuilder()
	for rows.Next() {
		var (
			q, d  any
			score float64
		)
		if err := rows.Scan(&q, &d, &score); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldScores", "scanning row: %v", err)
		}
		if err := b.Add(q, d, score); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldScores", "%v", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.foldScores", "iterating rows: %v", err)
	}
	return b.Build(), nil
}
