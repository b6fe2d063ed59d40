package domain

// UnitScale tags the multiplier applied to raw source values.
type UnitScale string

const (
	UnitScaleThousands UnitScale = "miles_de_pesos"
	UnitScaleMillions  UnitScale = "millones_de_pesos"
	UnitScaleUnits     UnitScale = "pesos"
	UnitScaleUnknown   UnitScale = "unknown"
)

// DefaultUnitScale is the scale CONSAR publishes and the historical store keeps.
const DefaultUnitScale = UnitScaleThousands

// Multiplier returns the factor that converts one source unit into pesos.
// Unknown scales return 0 so callers cannot rescale them by accident.
func (u UnitScale) Multiplier() float64 {
	switch u {
	case UnitScaleThousands:
		return 1_000
	case UnitScaleMillions:
		return 1_000_000
	case UnitScaleUnits:
		return 1
	}
	return 0
}

// Known reports whether the scale has a defined multiplier.
func (u UnitScale) Known() bool {
	return u.Multiplier() != 0
}

// Confidence marks whether downstream consumers can trust a record's magnitude.
type Confidence string

const (
	ConfidenceFull Confidence = "full"
	ConfidenceNone Confidence = "none"
)
