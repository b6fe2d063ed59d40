package domain

import "time"

// Record is one (entity, sub-fund, concept, period) value. The JSON names
// match the historical CONSAR store so existing files load unchanged.
type Record struct {
	Entity         string     `json:"Afore" validate:"required,entity"`
	Subfund        string     `json:"Siefore" validate:"required"`
	Concept        string     `json:"Concept" validate:"required"`
	PeriodYear     string     `json:"PeriodYear" validate:"required,period_year"`
	PeriodMonth    string     `json:"PeriodMonth" validate:"required,period_month"`
	ValueNative    float64    `json:"valueMXN"`
	ConversionRate float64    `json:"FX_EOM"`
	ValueConverted float64    `json:"valueUSD"`
	UnitScale      UnitScale  `json:"units,omitempty"`
	Confidence     Confidence `json:"confidence,omitempty"`
}

// Period returns the record's calendar period.
func (r Record) Period() Period {
	return Period{Year: r.PeriodYear, Month: r.PeriodMonth}
}

// Key returns the uniqueness key of the record.
func (r Record) Key() RecordKey {
	return RecordKey{
		Entity:  r.Entity,
		Subfund: r.Subfund,
		Concept: r.Concept,
		Period:  r.Period(),
	}
}

// RecordKey is the uniqueness key of a Record in the historical store.
type RecordKey struct {
	Entity  string
	Subfund string
	Concept string
	Period  Period
}

// Concepts tracked by CONSAR "Detalle por Afores" exports.
const (
	ConceptTotalAssets = "Total de Activo"
	ConceptOutsourced  = "Inversiones Tercerizadas"
	ConceptFiduciary   = "Inversión en títulos Fiduciarios"
	ConceptMutualFunds = "Inversión en Fondos Mutuos"
)

// RateObservation is one point of a currency conversion series.
type RateObservation struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}
