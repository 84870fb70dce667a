package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"earlyscope/service/analysis"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for persisted analysis reports.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ErrReportNotFound is returned when no report matches the query.
var ErrReportNotFound = errors.New("report not found")

// ReportRecord is one persisted analysis report row. The full report body is
// stored as JSONB; the summary columns exist for listing and filtering
// without deserializing every report.
type ReportRecord struct {
	ID             int64
	TokenAddress   string
	TokenCreatedAt time.Time
	BuyerCount     int
	NewWalletCount int
	Report         *analysis.AnalysisReport
	CreatedAt      time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id               BIGSERIAL PRIMARY KEY,
	token_address    TEXT        NOT NULL,
	token_created_at TIMESTAMPTZ NOT NULL,
	buyer_count      INTEGER     NOT NULL,
	new_wallet_count INTEGER     NOT NULL,
	report           JSONB       NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_token
	ON analysis_reports (token_address, created_at DESC);
`

// EnsureSchema creates the reports table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveReport persists one analysis report and returns its row id.
func (s *Store) SaveReport(ctx context.Context, report *analysis.AnalysisReport) (int64, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal report: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO analysis_reports (token_address, token_created_at, buyer_count, new_wallet_count, report)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		report.TokenAddress,
		report.TokenCreationTime,
		len(report.Buyers),
		report.NewWalletCount,
		body,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}
	return id, nil
}

// GetLatestReport returns the most recent report for a token.
func (s *Store) GetLatestReport(ctx context.Context, tokenAddress string) (*ReportRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, token_address, token_created_at, buyer_count, new_wallet_count, report, created_at
		FROM analysis_reports
		WHERE token_address = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		tokenAddress,
	)
	return scanReport(row)
}

// GetReport returns one report by row id.
func (s *Store) GetReport(ctx context.Context, id int64) (*ReportRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, token_address, token_created_at, buyer_count, new_wallet_count, report, created_at
		FROM analysis_reports
		WHERE id = $1`,
		id,
	)
	return scanReport(row)
}

// ListReports returns report summaries for a token, most recent first. The
// report body is included; callers listing many reports should page with
// limit/offset.
func (s *Store) ListReports(ctx context.Context, tokenAddress string, limit, offset int32) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, token_address, token_created_at, buyer_count, new_wallet_count, report, created_at
		FROM analysis_reports
		WHERE token_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		tokenAddress, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var records []*ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteReportsOlderThan removes reports created before the cutoff.
func (s *Store) DeleteReportsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analysis_reports WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*ReportRecord, error) {
	var (
		rec  ReportRecord
		body []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.TokenAddress,
		&rec.TokenCreatedAt,
		&rec.BuyerCount,
		&rec.NewWalletCount,
		&body,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	rec.Report = &analysis.AnalysisReport{}
	if err := json.Unmarshal(body, rec.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report body: %w", err)
	}
	return &rec, nil
}
