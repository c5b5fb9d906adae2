package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/pothole.report/internal/pothole"
	"github.com/banshee-data/pothole.report/internal/report"
)

// Save stores r and its potholes in a single transaction.
func (db *DB) Save(ctx context.Context, r *report.Report) error {
	if r == nil {
		return errors.New("nil report")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (
			run_id, street, direction, city, processed_at, source,
			total_potholes, duration_s, potholes_per_min,
			small_count, medium_count, large_count, partial,
			frames_read, frames_sampled, detections_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Street, r.Direction, r.City, r.ProcessedAt, r.Source,
		r.Total, r.Duration, r.PerMinute,
		r.Statistik.Small, r.Statistik.Medium, r.Statistik.Large, r.Partial,
		r.FramesRead, r.FramesSampled, r.DetectionsSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO potholes (
			run_id, pothole_id, timestamp_s, frame, confidence, area, severity,
			center_x, center_y, x1, y1, x2, y2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare pothole insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range r.Potholes {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, p.ID, p.Timestamp, p.Frame, p.Confidence, p.Area, string(p.Severity),
			p.Center.X, p.Center.Y, p.Box.X1, p.Box.Y1, p.Box.X2, p.Box.Y2,
		); err != nil {
			return fmt.Errorf("failed to insert pothole %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

const reportColumns = `
	run_id, street, direction, city, processed_at, source,
	total_potholes, duration_s, potholes_per_min,
	small_count, medium_count, large_count, partial,
	frames_read, frames_sampled, detections_seen`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*report.Report, error) {
	var r report.Report
	err := s.Scan(
		&r.RunID, &r.Street, &r.Direction, &r.City, &r.ProcessedAt, &r.Source,
		&r.Total, &r.Duration, &r.PerMinute,
		&r.Statistik.Small, &r.Statistik.Medium, &r.Statistik.Large, &r.Partial,
		&r.FramesRead, &r.FramesSampled, &r.DetectionsSeen,
	)
	if err != nil {
		return nil, err
	}
	r.Potholes = []pothole.Pothole{}
	return &r, nil
}

// ListReports returns reports most recent first with Potholes left empty;
// Total still counts them. Use GetReport for the detail. A limit <= 0
// returns every report.
func (db *DB) ListReports(ctx context.Context, limit int) ([]report.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []report.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetReport returns the report with the given run id including its
// potholes in id order.
func (db *DB) GetReport(ctx context.Context, runID string) (*report.Report, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE run_id = ?`, runID)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, report.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", runID, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT pothole_id, timestamp_s, frame, confidence, area, severity,
		       center_x, center_y, x1, y1, x2, y2
		FROM potholes WHERE run_id = ? ORDER BY pothole_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load potholes for %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p pothole.Pothole
		var severity string
		if err := rows.Scan(
			&p.ID, &p.Timestamp, &p.Frame, &p.Confidence, &p.Area, &severity,
			&p.Center.X, &p.Center.Y, &p.Box.X1, &p.Box.Y1, &p.Box.X2, &p.Box.Y2,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pothole: %w", err)
		}
		p.Severity = pothole.Severity(severity)
		r.Potholes = append(r.Potholes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteReport removes a report and its potholes.
func (db *DB) DeleteReport(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reports WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return report.ErrNotFound
	}
	return nil
}

// StreetTotal is the pothole count across every report for one street and
// direction.
type StreetTotal struct {
	Street    string `json:"street"`
	Direction string `json:"direction"`
	Runs      int    `json:"runs"`
	Potholes  int    `json:"potholes"`
	Large     int    `json:"large"`
}

// StreetTotals aggregates reports per street, worst first.
func (db *DB) StreetTotals(ctx context.Context) ([]StreetTotal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT street, direction, COUNT(*), SUM(total_potholes), SUM(large_count)
		FROM reports
		GROUP BY street, direction
		ORDER BY SUM(total_potholes) DESC, street`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate streets: %w", err)
	}
	defer rows.Close()

	totals := []StreetTotal{}
	for rows.Next() {
		var st StreetTotal
		if err := rows.Scan(&st.Street, &st.Direction, &st.Runs, &st.Potholes, &st.Large); err != nil {
			return nil, err
		}
		totals = append(totals, st)
	}
	return totals, rows.Err()
}
