// AngelaMos | 2026
// exporter.go

package analytics

import (
	"context"
	"fmt"

	"github.com/sorser/backend/internal/core"
)

const (
	ExportStudents = "students"
	ExportPlatform = "platform"
	ExportUser     = "user"
)

type ExportRequest struct {
	Type    string        `json:"type"              validate:"required,oneof=students platform user"`
	Filters StudentFilter `json:"filters"`
	UserID  string        `json:"user_id,omitempty" validate:"required_if=Type user"`
}

// Dataset is what an export serialises. Rows is zero for an empty export.
type Dataset struct {
	Type string `json:"type"`
	Rows int    `json:"rows"`
	Data any    `json:"data"`
}

type Exporter struct {
	source Source
	agg    *Aggregator
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source, agg: NewAggregator(source)}
}

func (e *Exporter) Build(ctx context.Context, req ExportRequest) (*Dataset, error) {
	switch req.Type {
	case ExportStudents:
		rows, err := e.source.Students(ctx, req.Filters)
		if err != nil {
			return nil, err
		}
		return &Dataset{Type: req.Type, Rows: len(rows), Data: rows}, nil

	case ExportPlatform:
		p, err := e.source.Platform(ctx)
		if err != nil {
			return nil, err
		}
		rows := 1
		if p.Users == 0 {
			rows = 0
		}
		return &Dataset{Type: req.Type, Rows: rows, Data: p}, nil

	case ExportUser:
		if req.UserID == "" {
			return nil, fmt.Errorf("%w: user export needs user_id", core.ErrInvalidInput)
		}
		s, err := e.agg.Summarize(ctx, req.UserID, MaxHistoryDays)
		if err != nil {
			return nil, err
		}
		rows := 1
		if s.Empty() {
			rows = 0
		}
		return &Dataset{Type: req.Type, Rows: rows, Data: s}, nil
	}

	return nil, fmt.Errorf("%w: unknown export type %q", core.ErrInvalidInput, req.Type)
}
