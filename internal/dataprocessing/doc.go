// Package dataprocessing extracts one reporting period from CONSAR
// "Detalle por Afores" spreadsheet exports.
//
// Each export covers one SIEFORE sub-fund. The first sheet has a fixed
// layout: a sub-fund header, a unit annotation ("Unidad: Miles de Pesos"),
// a row of period labels ("ene-24", "feb-24", ...) and, below it, blocks of
// rows where a concept header ("Total de Activo") is followed by one row
// per AFORE.
//
// Extraction runs in two passes. Classify tags every row as a concept
// header, an entity data row or noise; Emit turns data rows into records
// using the column of the target period. Structural anchors that cannot be
// found fail the export with a PARSING error; individual cells never do.
//
// The declared unit scale is read by UnitNormalizer. Records are tagged with
// the detected scale and a mismatch is reported as a warning on the
// Extraction rather than corrected.
package dataprocessing
