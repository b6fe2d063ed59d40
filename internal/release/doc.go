// Package release publishes integrated periods as GitHub releases of the
// history repository and reads back the latest release date, which the
// scraper uses to decide whether CONSAR has something new.
//
// A period is released as tag vYYYY.MM with the title
// "<Month> YYYY - Siefore Data Update" and markdown notes summarizing the
// integration. Publishing requires an approved approval document.
package release
