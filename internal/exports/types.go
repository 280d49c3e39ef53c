// Package exports converts vendor CSV exports into either direct
// charge rows (generic and device-centric files) or per-seat user
// records (license-centric files). Parsers never fail on row-level
// defects: bad rows are skipped and counted, with warnings collected
// in order. Only a missing header row is an artifact-level failure,
// reported as a warning with zero records.
package exports

import "apalloc_backend/internal/breakdown"

// User is one row of a per-seat export. One person may appear in
// several files; allocation merges them by normalized email.
type User struct {
	SourceFile    string   `json:"source_file"`
	Email         string   `json:"email"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Office        string   `json:"office"`
	DefaultBranch string   `json:"default_branch"`
	Products      []string `json:"products"`
}

// RowsResult is the outcome of a charge-row export parse.
type RowsResult struct {
	Filename    string          `json:"filename"`
	Rows        []breakdown.Row `json:"rows"`
	RowsSkipped int             `json:"rows_skipped"`
	Warnings    []string        `json:"warnings"`
}

// UsersResult is the outcome of a per-seat export parse.
type UsersResult struct {
	Filename    string   `json:"filename"`
	Users       []User   `json:"users"`
	RowsSkipped int      `json:"rows_skipped"`
	Warnings    []string `json:"warnings"`
}
