package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/tidwall/gjson"
)

// Fixed-width so that received_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoCallID is returned when a report cannot be keyed.
var ErrNoCallID = errors.New("report has no call id")

// Report summarizes one finished call.
type Report struct {
	CallID          string    `json:"callId"`
	Application     string    `json:"application"`
	EndedReason     string    `json:"endedReason,omitempty"`
	Cost            float64   `json:"cost"`
	DurationSeconds float64   `json:"durationSeconds"`
	Summary         string    `json:"summary,omitempty"`
	StartedAt       string    `json:"startedAt,omitempty"`
	EndedAt         string    `json:"endedAt,omitempty"`
	ReceivedAt      time.Time `json:"receivedAt"`
	Payload         string    `json:"-"`
}

// ReportStore persists call reports. Saving a report for a call that already
// has one replaces it.
type ReportStore interface {
	Save(ctx context.Context, r Report) error
	List(ctx context.Context, limit int) ([]Report, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ParseReport extracts a Report from an end-of-call-report body.
func ParseReport(app string, body []byte, receivedAt time.Time) (Report, error) {
	if !gjson.ValidBytes(body) {
		return Report{}, fmt.Errorf("parsing report: invalid JSON")
	}
	msg := gjson.GetBytes(body, "message")

	r := Report{
		CallID:          msg.Get("call.id").String(),
		Application:     app,
		EndedReason:     msg.Get("endedReason").String(),
		Cost:            msg.Get("cost").Float(),
		DurationSeconds: msg.Get("durationSeconds").Float(),
		Summary:         msg.Get("summary").String(),
		StartedAt:       msg.Get("startedAt").String(),
		EndedAt:         msg.Get("endedAt").String(),
		ReceivedAt:      receivedAt.UTC(),
		Payload:         string(body),
	}
	if r.Summary == "" {
		r.Summary = msg.Get("analysis.summary").String()
	}
	if r.CallID == "" {
		return Report{}, ErrNoCallID
	}
	return r, nil
}

// ReportObserver saves every end-of-call-report request record to s.
func ReportObserver(s ReportStore, log *logging.Logger) hooks.Observer {
	log = log.Sub("reports")
	return func(ctx context.Context, rec domain.CallbackRecord) error {
		if rec.Kind != domain.CallbackRequest || rec.Type != domain.EndOfCallReport {
			return nil
		}
		r, err := ParseReport(rec.Application, rec.Payload, rec.At)
		if err != nil {
			return err
		}
		if err := s.Save(ctx, r); err != nil {
			return fmt.Errorf("saving report for call %s: %w", r.CallID, err)
		}
		log.Info().
			Str("app", r.Application).
			Str("call", r.CallID).
			Str("endedReason", r.EndedReason).
			Float64("cost", r.Cost).
			Msg("call report saved")
		return nil
	}
}

// SQLiteReportStore stores reports in the call_reports table.
type SQLiteReportStore struct {
	db *DB
}

// NewSQLiteReportStore creates a report store over an open database.
func NewSQLiteReportStore(db *DB) *SQLiteReportStore {
	return &SQLiteReportStore{db: db}
}

func (s *SQLiteReportStore) Save(ctx context.Context, r Report) error {
	if r.CallID == "" {
		return ErrNoCallID
	}
	var payload sql.NullString
	if r.Payload != "" {
		payload = sql.NullString{String: r.Payload, Valid: true}
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO call_reports
			(call_id, application, ended_reason, cost, duration_seconds, summary, started_at, ended_at, received_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
		   application = excluded.application,
		   ended_reason = excluded.ended_reason,
		   cost = excluded.cost,
		   duration_seconds = excluded.duration_seconds,
		   summary = excluded.summary,
		   started_at = excluded.started_at,
		   ended_at = excluded.ended_at,
		   received_at = excluded.received_at,
		   payload = excluded.payload`,
		r.CallID, r.Application, r.EndedReason, r.Cost, r.DurationSeconds, r.Summary,
		r.StartedAt, r.EndedAt, r.ReceivedAt.UTC().Format(timeLayout), payload,
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// List returns the most recently received reports first. A limit of zero or
// less returns all reports.
func (s *SQLiteReportStore) List(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT call_id, application, ended_reason, cost, duration_seconds, summary, started_at, ended_at, received_at, payload
		 FROM call_reports
		 ORDER BY received_at DESC, call_id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		var (
			r        Report
			received string
			payload  sql.NullString
		)
		if err := rows.Scan(&r.CallID, &r.Application, &r.EndedReason, &r.Cost, &r.DurationSeconds,
			&r.Summary, &r.StartedAt, &r.EndedAt, &received, &payload); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.ReceivedAt, _ = time.Parse(timeLayout, received)
		r.Payload = payload.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *SQLiteReportStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM call_reports").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return n, nil
}

func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}

// MemoryReportStore keeps reports in process memory.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewMemoryReportStore creates an empty in-memory report store.
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]Report)}
}

func (m *MemoryReportStore) Save(_ context.Context, r Report) error {
	if r.CallID == "" {
		return ErrNoCallID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.CallID] = r
	return nil
}

func (m *MemoryReportStore) List(_ context.Context, limit int) ([]Report, error) {
	m.mu.RLock()
	reports := make([]Report, 0, len(m.reports))
	for _, r := range m.reports {
		reports = append(reports, r)
	}
	m.mu.RUnlock()

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].ReceivedAt.Equal(reports[j].ReceivedAt) {
			return reports[i].CallID < reports[j].CallID
		}
		return reports[i].ReceivedAt.After(reports[j].ReceivedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (m *MemoryReportStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports), nil
}

func (m *MemoryReportStore) Close() error { return nil }
