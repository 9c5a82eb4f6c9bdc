package service

import (
	"context"

	"OmniSpectrum/internal/domain/models"
)

// ForecastGenerator produces a fresh snapshot. Implementations must return a
// fully parsed and validated document or an error, never a partial result.
type ForecastGenerator interface {
	Generate(ctx context.Context) (*models.Document, error)
}
