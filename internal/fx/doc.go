// Package fx converts native peso amounts into dollars using the
// end-of-month observation of a Banco de México exchange-rate series.
package fx
