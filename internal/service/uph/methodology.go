package uph

import (
	"uph-engine/internal/config"
	"uph-engine/internal/storage"
)

// Methodology is the versioned set of thresholds the pipeline applies.
type Methodology struct {
	Version string

	// cycles sharing MO, operator and a duration at or under this value are
	// suspect when at least CorruptionMinGroupSize of them exist
	CorruptionMaxSeconds   int64
	CorruptionMinGroupSize int

	MinDurationSeconds float64
	MaxUph             map[storage.Category]float64
}

func DefaultMethodology() Methodology {
	return Methodology{
		Version:                "uph-v2",
		CorruptionMaxSeconds:   60,
		CorruptionMinGroupSize: 3,
		MinDurationSeconds:     5 * 60,
		MaxUph: map[storage.Category]float64{
			storage.CategoryAssembly:  100,
			storage.CategoryCutting:   500,
			storage.CategoryPackaging: 300,
		},
	}
}

func MethodologyFromConfig(cfg config.Methodology) Methodology {
	return Methodology{
		Version:                cfg.Version,
		CorruptionMaxSeconds:   cfg.CorruptionMaxSeconds,
		CorruptionMinGroupSize: cfg.CorruptionMinGroupSize,
		MinDurationSeconds:     cfg.MinDurationMinutes * 60,
		MaxUph: map[storage.Category]float64{
			storage.CategoryAssembly:  cfg.MaxUphAssembly,
			storage.CategoryCutting:   cfg.MaxUphCutting,
			storage.CategoryPackaging: cfg.MaxUphPackaging,
		},
	}
}
