// Package scraper discovers the latest period CONSAR has published and
// decides whether the pipeline has anything new to do.
//
// The statistics page is rendered with chromedp because its coverage
// banner ("Periodo Disponible: Ene 19-Sep 25") is produced by script.
// Checker compares that period with the latest release of the history
// repository, and the run metadata file hands the chosen period to the
// processing commands.
package scraper
