package counter

import "fmt"

const (
	RateKeyPattern              = "rate:%s"
	PatternKeyPattern           = "pattern:%s"
	UserAgentKeyPattern         = "ua:%s"
	AuthFailureKeyPattern       = "auth_fail:%s"
	ChallengeKeyPattern         = "challenge:%s"
	ChallengePassKeyPattern     = "challenge_pass:%s"
	ChallengePassUsedKeyPattern = "challenge_pass_used:%s"
	ChallengeFailuresKeyPattern = "challenge_failures:%s"
	ChallengeBlockKeyPattern    = "challenge_block:%s"
	DetectorActiveKeyPattern    = "detector:active:%d"
	DetectorMintedKeyPattern    = "detector:minted:%s"
)

func RateKey(sourceHash string) string      { return fmt.Sprintf(RateKeyPattern, sourceHash) }
func PatternKey(sourceHash string) string   { return fmt.Sprintf(PatternKeyPattern, sourceHash) }
func UserAgentKey(sourceHash string) string { return fmt.Sprintf(UserAgentKeyPattern, sourceHash) }
func AuthFailureKey(sourceHash string) string {
	return fmt.Sprintf(AuthFailureKeyPattern, sourceHash)
}
func ChallengeKey(token string) string     { return fmt.Sprintf(ChallengeKeyPattern, token) }
func ChallengePassKey(token string) string { return fmt.Sprintf(ChallengePassKeyPattern, token) }
func ChallengePassUsedKey(token string) string {
	return fmt.Sprintf(ChallengePassUsedKeyPattern, token)
}
func ChallengeFailuresKey(sourceHash string) string {
	return fmt.Sprintf(ChallengeFailuresKeyPattern, sourceHash)
}
func ChallengeBlockKey(sourceHash string) string {
	return fmt.Sprintf(ChallengeBlockKeyPattern, sourceHash)
}
func DetectorActiveKey(minuteBucket int64) string {
	return fmt.Sprintf(DetectorActiveKeyPattern, minuteBucket)
}
// DetectorMintedKey is claimed once per pattern for a full detection window.
func DetectorMintedKey(patternHash string) string {
	return fmt.Sprintf(DetectorMintedKeyPattern, patternHash)
}

// SourceKeys lists every per-source key the score engine and challenge manager own.
func SourceKeys(sourceHash string) []string {
	return []string{
		RateKey(sourceHash),
		PatternKey(sourceHash),
		UserAgentKey(sourceHash),
		AuthFailureKey(sourceHash),
		ChallengeFailuresKey(sourceHash),
		ChallengeBlockKey(sourceHash),
	}
}
