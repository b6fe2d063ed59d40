// Package domain holds the contracts shared by every stage of the Siefore
// ledger pipeline: records, periods, unit scales, consistency reports and
// the approval document.
package domain
