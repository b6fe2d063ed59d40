package dataprocessing

import (
	"strings"
)

// RowKind is the role of a row below the period header.
type RowKind int

const (
	RowNoise RowKind = iota
	RowConceptHeader
	RowData
)

func (k RowKind) String() string {
	switch k {
	case RowConceptHeader:
		return "concept_header"
	case RowData:
		return "data"
	}
	return "noise"
}

// ClassifiedRow is the first-pass verdict for one sheet row.
type ClassifiedRow struct {
	Index   int
	Kind    RowKind
	Label   string
	Entity  string // canonical entity, data rows only
	Concept string // canonical concept in effect for the row
}

// UnrecognizedConcept is a keyword-matching header that no alias resolves.
type UnrecognizedConcept struct {
	Index int
	Label string
}

// Classifier tags rows as concept headers, entity data rows or noise.
type Classifier struct {
	entities *AliasTable
	concepts *AliasTable
	keywords []string
}

// NewClassifier builds a classifier from the entity allow-list and the
// concept vocabulary.
func NewClassifier(entities *AliasTable, concepts *AliasTable, keywords []string) *Classifier {
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = Fold(k); k != "" {
			folded = append(folded, k)
		}
	}
	return &Classifier{entities: entities, concepts: concepts, keywords: folded}
}

// isConceptHeader reports whether label carries one of the concept keywords.
func (c *Classifier) isConceptHeader(label string) bool {
	folded := Fold(label)
	for _, k := range c.keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

// Classify runs the first pass over rows[from:], reading labels from
// labelCol. A data row needs both an allow-listed entity and a concept
// header above it; everything else is noise. Concept headers that match a
// keyword but resolve to no known concept are returned separately.
func (c *Classifier) Classify(rows [][]string, from, labelCol int) ([]ClassifiedRow, []UnrecognizedConcept) {
	var (
		out          []ClassifiedRow
		unrecognized []UnrecognizedConcept
		current      string
	)

	for i := from; i < len(rows); i++ {
		label := ""
		if labelCol < len(rows[i]) {
			label = strings.TrimSpace(rows[i][labelCol])
		}
		row := ClassifiedRow{Index: i, Kind: RowNoise, Label: label}

		switch {
		case label == "":
		case c.isConceptHeader(label):
			concept, ok := c.concepts.Resolve(label)
			if !ok {
				unrecognized = append(unrecognized, UnrecognizedConcept{Index: i, Label: label})
				current = ""
				break
			}
			current = concept
			row.Kind = RowConceptHeader
			row.Concept = concept
		default:
			entity, ok := c.entities.Resolve(label)
			if ok && current != "" {
				row.Kind = RowData
				row.Entity = entity
				row.Concept = current
			}
		}

		out = append(out, row)
	}
	return out, unrecognized
}
