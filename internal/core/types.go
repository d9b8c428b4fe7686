package core

import "time"

// Credentials holds the client-credential pair used to mint bearer tokens.
// Loaded once at startup and immutable afterwards.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// IsZero reports whether no credential material is present.
func (c Credentials) IsZero() bool {
	return c.ClientID == "" && c.ClientSecret == ""
}

// Token is a bearer token together with the time it was obtained.
// Expiry is discovered reactively (a 401/403 from the API), never assumed.
type Token struct {
	Value      string
	ObtainedAt time.Time
}

// Mode selects which listing query a run performs.
type Mode string

const (
	// ModeAll fetches the complete advisory listing.
	ModeAll Mode = "all"
	// ModeDates fetches advisories last published within a trailing window.
	ModeDates Mode = "dates"
)

// Query describes one run's listing request, constructed once from CLI inputs.
type Query struct {
	Mode Mode
	Days int
}

// AdvisoryRecord is a lightweight listing entry referencing one advisory.
// Only AdvisoryID drives the per-document fetch; the rest is display metadata.
type AdvisoryRecord struct {
	AdvisoryID     string `json:"advisoryId"`
	Title          string `json:"advisoryTitle,omitempty"`
	Severity       string `json:"sir,omitempty"`
	FirstPublished string `json:"firstPublished,omitempty"`
	LastUpdated    string `json:"lastUpdated,omitempty"`
}

// QuotaState is the persisted form of one quota window, so that slow tiers
// (the daily ceiling) survive process restarts.
type QuotaState struct {
	Tier      string
	Calls     []time.Time
	UpdatedAt time.Time
}

// ManifestEntry describes one advisory document persisted to disk.
type ManifestEntry struct {
	AdvisoryID string
	RunID      string
	Size       int64
	SHA256     string
	FetchedAt  time.Time
}

// Failure records one advisory that could not be fetched or written.
type Failure struct {
	AdvisoryID string `json:"advisory_id"`
	Reason     string `json:"reason"`
}

// RunSummary is the only return value of a fetch run. Partial completion is
// expected and normal; failures are counted, not raised.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Mode        Mode      `json:"mode"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	OutputDir   string    `json:"output_dir"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Listed      int       `json:"listed"`
	Fetched     int       `json:"fetched"`
	Failed      int       `json:"failed"`
	Failures    []Failure `json:"failures,omitempty"`
}
