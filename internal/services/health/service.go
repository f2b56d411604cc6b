package health

import (
	"context"
	"encoding/json"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Prober is satisfied by *rag.Client.
type Prober interface {
	Health(ctx context.Context) (json.RawMessage, error)
}

const (
	StatusOK          = "ok"
	StatusMemory      = "memory"
	StatusUnreachable = "unreachable"
)

// Report is the deep health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	RAG      string `json:"rag"`
	Error    string `json:"error,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	RAG     Prober
	Timeout time.Duration
}

// NewService constructs a new health service. db may be nil when running on in-memory repositories.
func NewService(db Pinger, rag Prober) *Service {
	return &Service{DB: db, RAG: rag, Timeout: 3 * time.Second}
}

// Status returns the liveness payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Check probes the database and the RAG service. Only a failing database
// makes the report not OK; the RAG service is reported for information.
func (s *Service) Check(ctx context.Context) Report {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := Report{OK: true, Database: StatusMemory, RAG: StatusUnreachable}
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			report.OK = false
			report.Database = StatusUnreachable
			report.Error = err.Error()
		} else {
			report.Database = StatusOK
		}
	}
	if s.RAG != nil {
		if _, err := s.RAG.Health(ctx); err == nil {
			report.RAG = StatusOK
		}
	}
	return report
}
