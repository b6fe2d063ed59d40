package dataprocessing

import (
	"strings"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// ClassifyAnnotation maps a unit annotation such as
// "Unidad: Miles de Pesos" to a scale.
func ClassifyAnnotation(text string) domain.UnitScale {
	folded := Fold(text)
	switch {
	case strings.Contains(folded, "miles de pesos"):
		return domain.UnitScaleThousands
	case strings.Contains(folded, "millones"):
		return domain.UnitScaleMillions
	case strings.Contains(folded, "pesos"):
		return domain.UnitScaleUnits
	}
	return domain.UnitScaleUnknown
}

// UnitNormalizer reads the declared unit annotation of an export and
// compares it with the scale the store expects.
type UnitNormalizer struct {
	expected domain.UnitScale
	row, col int
}

// NewUnitNormalizer creates a normalizer for the given layout.
func NewUnitNormalizer(expected domain.UnitScale, layout config.LayoutConfig) *UnitNormalizer {
	if !expected.Known() {
		expected = domain.DefaultUnitScale
	}
	return &UnitNormalizer{expected: expected, row: layout.UnitRow, col: layout.UnitCol}
}

// Expected returns the scale the store is kept in.
func (n *UnitNormalizer) Expected() domain.UnitScale {
	return n.expected
}

// Annotation returns the raw unit annotation. The fixed cell is preferred;
// if it is blank the rest of the row is searched for a "pesos" mention.
func (n *UnitNormalizer) Annotation(rows [][]string) (string, error) {
	if n.row >= len(rows) {
		return "", apperrors.NewParsingError("unit annotation row missing", apperrors.ErrUnitAnnotationNotFound).
			WithContext("row", n.row)
	}
	row := rows[n.row]
	if n.col < len(row) {
		if text := strings.TrimSpace(row[n.col]); text != "" {
			return text, nil
		}
	}
	for _, cell := range row {
		if strings.Contains(Fold(cell), "pesos") {
			return strings.TrimSpace(cell), nil
		}
	}
	return "", apperrors.NewParsingError("unit annotation cell empty", apperrors.ErrUnitAnnotationNotFound).
		WithContext("row", n.row).
		WithContext("col", n.col)
}

// DetectScale classifies the export's declared unit scale. A missing
// annotation is a parse error; an unrecognized one is UnitScaleUnknown.
func (n *UnitNormalizer) DetectScale(rows [][]string) (domain.UnitScale, error) {
	text, err := n.Annotation(rows)
	if err != nil {
		return domain.UnitScaleUnknown, err
	}
	return ClassifyAnnotation(text), nil
}

// Check returns a UnitMismatch error when detected differs from the
// expected scale. The error is a warning: records are still produced.
func (n *UnitNormalizer) Check(detected domain.UnitScale) error {
	if detected == n.expected {
		return nil
	}
	return apperrors.NewUnitMismatchError(string(detected), string(n.expected))
}

// Tag stamps records with the detected scale. Unknown scales downgrade
// confidence so the export is handled manually.
func Tag(records []domain.Record, scale domain.UnitScale) {
	confidence := domain.ConfidenceFull
	if !scale.Known() {
		confidence = domain.ConfidenceNone
	}
	for i := range records {
		records[i].UnitScale = scale
		records[i].Confidence = confidence
	}
}

// Rescale converts records to the target scale and re-tags them. Converted
// values are rescaled with the native ones so their ratio is unchanged.
// Records with an unknown source scale are returned untouched and counted
// in skipped. The input slice is not modified.
func Rescale(records []domain.Record, to domain.UnitScale) (out []domain.Record, skipped int) {
	out = make([]domain.Record, len(records))
	copy(out, records)
	if !to.Known() {
		return out, len(out)
	}
	for i := range out {
		from := out[i].UnitScale
		if from == "" {
			from = domain.DefaultUnitScale
		}
		if !from.Known() {
			skipped++
			continue
		}
		if from == to {
			out[i].UnitScale = to
			continue
		}
		factor := from.Multiplier() / to.Multiplier()
		out[i].ValueNative *= factor
		out[i].ValueConverted *= factor
		out[i].UnitScale = to
		out[i].Confidence = domain.ConfidenceFull
	}
	return out, skipped
}
