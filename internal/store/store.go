package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Point is one solved run on a Pareto frontier. Epsilon is nil for the
// unconstrained anchor. The JSON keys of the objective values follow the
// oracle's result record.
type Point struct {
	ID             uuid.UUID `json:"id"`
	TotalCost      float64   `json:"TotalCost"`
	TotalEmissions float64   `json:"TotalGWP"`
	SocialWelfare  float64   `json:"SocialWelfare"`
	Epsilon        *float64  `json:"epsilon"`
	ElasticityTag  string    `json:"elasticity_tag"`
	SolveTime      float64   `json:"solve_time"`
	RunDir         string    `json:"run_dir,omitempty"`
}

// IsAnchor reports whether the point is the unconstrained or the
// zero-emissions anchor.
func (p Point) IsAnchor() bool {
	return p.Epsilon == nil || *p.Epsilon == 0
}

// Frontier is the finalised Pareto frontier of one scenario, ordered by
// ascending emissions.
type Frontier struct {
	ID        uuid.UUID `json:"id"`
	SweepID   uuid.UUID `json:"sweep_id"`
	Tag       string    `json:"tag"`
	Points    []Point   `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the list view of a Frontier.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	SweepID      uuid.UUID `json:"sweep_id"`
	Tag          string    `json:"tag"`
	Points       int       `json:"points"`
	MinEmissions float64   `json:"min_emissions"`
	MaxEmissions float64   `json:"max_emissions"`
	MaxWelfare   float64   `json:"max_welfare"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary computes the list view of f.
func (f *Frontier) Summary() Summary {
	s := Summary{
		ID:        f.ID,
		SweepID:   f.SweepID,
		Tag:       f.Tag,
		Points:    len(f.Points),
		CreatedAt: f.CreatedAt,
	}
	for i, p := range f.Points {
		if i == 0 || p.TotalEmissions < s.MinEmissions {
			s.MinEmissions = p.TotalEmissions
		}
		if i == 0 || p.TotalEmissions > s.MaxEmissions {
			s.MaxEmissions = p.TotalEmissions
		}
		if i == 0 || p.SocialWelfare > s.MaxWelfare {
			s.MaxWelfare = p.SocialWelfare
		}
	}
	return s
}

// Store persists finalised frontiers. Saving a frontier replaces any earlier
// frontier with the same tag.
type Store interface {
	SaveFrontier(ctx context.Context, f *Frontier) error
	// GetFrontier returns nil, nil when no frontier exists for tag.
	GetFrontier(ctx context.Context, tag string) (*Frontier, error)
	ListFrontiers(ctx context.Context) ([]Summary, error)
	Close() error
}
