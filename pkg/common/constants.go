package common

const (
	ChallengeTokenHeader = "X-Challenge-Token"
	SessionIDHeader      = "X-Session-ID"
	SessionCookieName    = "sessionid"
	ThreatScoreHeader    = "X-Threat-Score"
	ThreatActionHeader   = "X-Threat-Action"

	ChallengeEndpoint = "/api/security/challenge"
)

type ContextKey string

const (
	VerdictContextKey     ContextKey = "threat_verdict"
	FingerprintContextKey ContextKey = "threat_fingerprint"
	AdminSubjectKey       ContextKey = "admin_subject"
)
