package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/repositories"
)

// ErrSystemHealthUnavailable signals the readiness probes could not run.
var ErrSystemHealthUnavailable = errors.New("system: health unavailable")

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService constructs a SystemService over the dependency health repository.
func NewSystemService(health repositories.HealthRepository) (SystemService, error) {
	if health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	return &systemService{health: health}, nil
}

// Readiness collects dependency probes into a single report.
func (s *systemService) Readiness(ctx context.Context) (domain.SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, fmt.Errorf("%w: %v", ErrSystemHealthUnavailable, err)
	}
	return report, nil
}
