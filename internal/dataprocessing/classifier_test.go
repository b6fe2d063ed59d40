package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieforeagent/internal/config"
	"sieforeagent/pkg/contracts/domain"
)

func testClassifier() *Classifier {
	return NewClassifier(
		NewAliasTable(config.DefaultEntities, nil),
		NewAliasTable([]string{domain.ConceptTotalAssets, domain.ConceptOutsourced}, config.DefaultConceptAliases),
		config.DefaultConceptKeywords,
	)
}

func TestClassify(t *testing.T) {
	rows := [][]string{
		{"", "header row, skipped"},
		{"", "Azteca"}, // entity before any concept
		{"", "Total de Activo"},
		{"", "Azteca", "", "", "10"},
		{},
		{"", "Afore Desconocida", "", "", "5"},
		{"", "Inversiones Tercerizadas"},
		{"", "xxi banorte", "", "", "7"},
		{"", "* Cifras preliminares"},
	}

	classified, unrecognized := testClassifier().Classify(rows, 1, 1)
	require.Empty(t, unrecognized)
	require.Len(t, classified, 8)

	kinds := make([]RowKind, len(classified))
	for i, r := range classified {
		kinds[i] = r.Kind
	}
	assert.Equal(t, []RowKind{
		RowNoise, RowConceptHeader, RowData, RowNoise,
		RowNoise, RowConceptHeader, RowData, RowNoise,
	}, kinds)

	assert.Equal(t, "Azteca", classified[2].Entity)
	assert.Equal(t, domain.ConceptTotalAssets, classified[2].Concept)
	assert.Equal(t, 3, classified[2].Index)

	// allow-list lookup is case-insensitive and yields the canonical name
	assert.Equal(t, "XXI Banorte", classified[6].Entity)
	assert.Equal(t, domain.ConceptOutsourced, classified[6].Concept)
}

func TestClassifyUnrecognizedConcept(t *testing.T) {
	rows := [][]string{
		{"", "Total de Activo"},
		{"", "Azteca", "", "", "1"},
		{"", "Activo Circulante"},
		{"", "SURA", "", "", "2"},
	}

	classified, unrecognized := testClassifier().Classify(rows, 0, 1)
	require.Len(t, unrecognized, 1)
	assert.Equal(t, 2, unrecognized[0].Index)
	assert.Equal(t, "Activo Circulante", unrecognized[0].Label)

	// rows after the unknown header are not attributed to the previous concept
	assert.Equal(t, RowData, classified[1].Kind)
	assert.Equal(t, RowNoise, classified[3].Kind)
}

func TestEmit(t *testing.T) {
	rows := [][]string{
		{"", "Total de Activo"},
		{"", "Azteca", "1,500"},
		{"", "SURA"}, // target cell missing
	}
	classified, _ := testClassifier().Classify(rows, 0, 1)

	records := Emit(rows, classified, 2, "70-74", oct24)
	require.Len(t, records, 2)
	assert.Equal(t, 1500.0, records[0].ValueNative)
	assert.Equal(t, 0.0, records[1].ValueNative)
	assert.Equal(t, "70-74", records[1].Subfund)
	assert.Equal(t, oct24, records[1].Period())
}

func TestRowKindString(t *testing.T) {
	assert.Equal(t, "noise", RowNoise.String())
	assert.Equal(t, "concept_header", RowConceptHeader.String())
	assert.Equal(t, "data", RowData.String())
}
