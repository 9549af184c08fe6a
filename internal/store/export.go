// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// InstitutionReport is the on-disk analytics export.
type InstitutionReport struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Overview    InstitutionOverview  `json:"overview"`
	Impact      []InterventionImpact `json:"interventionImpact"`
}

// ExportInstitutionReport writes the analytics rollup to path as JSON.
// The write is atomic: readers never observe a partial report.
func (s *Store) ExportInstitutionReport(ctx context.Context, path string, logger zerolog.Logger) (*InstitutionReport, error) {
	overview, err := s.GetInstitutionOverview(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("institution overview: %w", err)
	}
	impact, err := s.GetInterventionImpact(ctx)
	if err != nil {
		return nil, fmt.Errorf("intervention impact: %w", err)
	}

	report := &InstitutionReport{
		GeneratedAt: time.Now().UTC(),
		Overview:    *overview,
		Impact:      impact,
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return nil, fmt.Errorf("create pending report: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("atomically replace report: %w", err)
	}

	logger.Info().Str("path", path).Msg("institution report exported")
	return report, nil
}
