package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sieforeagent/internal/config"
	"sieforeagent/pkg/contracts/domain"
)

func TestParsePeriodLabel(t *testing.T) {
	tests := []struct {
		label string
		want  domain.Period
		ok    bool
	}{
		{"ene-24", domain.Period{Year: "2024", Month: "01"}, true},
		{"oct-24", domain.Period{Year: "2024", Month: "10"}, true},
		{"dic-2025", domain.Period{Year: "2025", Month: "12"}, true},
		{"Enero-2024", domain.Period{Year: "2024", Month: "01"}, true},
		{" Sep 25 ", domain.Period{Year: "2025", Month: "09"}, true},
		{"AGO/23", domain.Period{Year: "2023", Month: "08"}, true},
		{"Dec-24", domain.Period{Year: "2024", Month: "12"}, true},
		{"Concepto", domain.Period{}, false},
		{"", domain.Period{}, false},
		{"xyz-24", domain.Period{}, false},
		{"ene-", domain.Period{}, false},
		{"ene-124", domain.Period{}, false},
		{"2024-10", domain.Period{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParsePeriodLabel(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanValue(t *testing.T) {
	tests := []struct {
		cell string
		want float64
	}{
		{"1,234", 1234},
		{"1,234,567.89", 1234567.89},
		{"N/E", 0},
		{"n/a", 0},
		{"-", 0},
		{"", 0},
		{"   ", 0},
		{"abc", 0},
		{"12..5", 0},
		{"NaN", 0},
		{"(1,000)", -1000},
		{" 42 ", 42},
		{"-17.5", -17.5},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanValue(tt.cell))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "siefore basica inicial", Fold("  Siefore   Básica Inicial "))
	assert.Equal(t, "inversion en titulos fiduciarios", Fold("Inversión en títulos Fiduciarios"))
	assert.Equal(t, "pensionissste", Fold("PensionISSSTE"))
}

func TestAliasTable(t *testing.T) {
	table := NewAliasTable(config.DefaultSubfunds, config.DefaultSubfundAliases)

	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{"60-64", "60-64", true},
		{"Inicial", "Basica Inicial", true},
		{"inicial", "Basica Inicial", true},
		{"Básica Inicial", "Basica Inicial", true},
		{"basica inicial", "Basica Inicial", true},
		{"PENSIONES", "Pensiones", true},
		{"100-104", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := table.Resolve(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.ElementsMatch(t, config.DefaultSubfunds, table.Canonical())
}

func TestConceptAliases(t *testing.T) {
	concepts := NewAliasTable([]string{domain.ConceptMutualFunds}, config.DefaultConceptAliases)

	for _, variant := range []string{
		"Inversión en Fondos Mutuos",
		"Inversion en Fondos Mutuos",
		"INVERSIÓN EN FONDOS MUTUOS",
		"Inversiones en Fondos Mutuos",
	} {
		got, ok := concepts.Resolve(variant)
		assert.True(t, ok, variant)
		assert.Equal(t, domain.ConceptMutualFunds, got, variant)
	}
}
