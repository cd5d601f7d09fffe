package deployment

import "strings"

// =============================================================================
// Error Classification
// =============================================================================

// IsAlreadyDone reports whether a failed configuration action was in fact
// already performed, judged by matching its error message against known
// signatures. Matching is a case-sensitive substring test.
//
// The chain offers no structured "already satisfied" status, only revert
// messages, so a wording change upstream turns a recoverable error into a
// fatal one. All matching goes through this function.
//
// Example:
//
//	err := errors.New("execution reverted: registry already set")
//	IsAlreadyDone(err, []string{"already set"}) // true
//	IsAlreadyDone(err, []string{"Already Set"}) // false
func IsAlreadyDone(err error, signatures []string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sig := range signatures {
		if sig != "" && strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
