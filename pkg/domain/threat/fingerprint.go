package threat

import "time"

// Fingerprint is the per-request view of a source. IP never leaves process memory;
// everything persisted or shared is keyed by SourceHash.
type Fingerprint struct {
	IP              string
	SourceHash      string
	Endpoint        string
	Method          string
	Timestamp       time.Time
	UserAgent       string
	HasSession      bool
	HasCookies      bool
	IsAuthenticated bool
}
