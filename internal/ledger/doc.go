// Package ledger holds the historical record store: period merges, atomic
// writes with timestamped backups, an optional S3 backup mirror and
// corrective unit migrations.
package ledger
