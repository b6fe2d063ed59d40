package config

import "sieforeagent/pkg/contracts/domain"

// External endpoints
const (
	DefaultConsarURL  = "https://www.consar.gob.mx/gobmx/aplicativo/siset/Enlace.aspx?md=79"
	DefaultBanxicoURL = "https://www.banxico.org.mx/SieAPIRest/service/v1/series"
	DefaultRateSeries = "SF43718" // FIX peso/dollar rate
)

// BackupFilePrefix names timestamped store backups.
const BackupFilePrefix = "consar_siefores_backup_"

// DefaultDriftThreshold is the month-over-month change of total assets
// above which verification warns.
const DefaultDriftThreshold = 0.10

// DefaultEntities is the AFORE allow-list. Rows whose label is not in it
// are treated as noise.
var DefaultEntities = []string{
	"Azteca", "Banamex", "Coppel", "Inbursa", "Invercap",
	"PensionISSSTE", "Principal", "Profuturo", "SURA", "XXI Banorte",
}

// DefaultSubfunds are the canonical SIEFORE names stored in the ledger.
var DefaultSubfunds = []string{
	"Pensiones", "60-64", "65-69", "70-74", "75-79",
	"80-84", "85-89", "90-94", "95-99", "Basica Inicial",
}

// DefaultSubfundAliases maps header spellings to canonical names. Keys are
// compared accent- and case-insensitively.
var DefaultSubfundAliases = map[string]string{
	"Inicial":        "Basica Inicial",
	"Básica Inicial": "Basica Inicial",
	"Pensión":        "Pensiones",
	"De Pensiones":   "Pensiones",
	"Básica Pensión": "Pensiones",
}

// DefaultConceptKeywords mark a concept-header row.
var DefaultConceptKeywords = []string{
	"Activo", "Tercerizadas", "Fiduciarios", "Fondos Mutuos",
}

// DefaultConceptAliases maps header spellings to canonical concepts.
var DefaultConceptAliases = map[string]string{
	"Total de Activo":                  domain.ConceptTotalAssets,
	"Activo Total":                     domain.ConceptTotalAssets,
	"Inversiones Tercerizadas":         domain.ConceptOutsourced,
	"Inversión Tercerizada":            domain.ConceptOutsourced,
	"Inversión en títulos Fiduciarios": domain.ConceptFiduciary,
	"Inversión en Fiduciarios":         domain.ConceptFiduciary,
	"Inversión en Fondos Mutuos":       domain.ConceptMutualFunds,
	"Inversiones en Fondos Mutuos":     domain.ConceptMutualFunds,
}

// DefaultLayout is the CONSAR "Detalle por Afores" sheet layout.
var DefaultLayout = LayoutConfig{
	UnitRow:         6,
	UnitCol:         2,
	SubfundRow:      2,
	SubfundCol:      1,
	PeriodHeaderRow: 9,
	FirstPeriodCol:  4,
	FirstDataRow:    10,
	LabelCol:        1,
}
