package deployment

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Ledger Naming Functions
// =============================================================================

// archiveTimeLayout is a filename-safe UTC timestamp.
const archiveTimeLayout = "20060102T150405Z"

// LedgerFileName returns the live ledger file name for a network.
// Pattern: {network}.json
//
// Example:
//
//	LedgerFileName("Sepolia Testnet") // returns "sepolia-testnet.json"
func LedgerFileName(network string) string {
	return fmt.Sprintf("%s.json", safeName(network))
}

// ArchiveName returns the immutable archive file name of a completed ledger.
// Pattern: {network}-{completedAt}-{runID[:8]}.json
//
// Example:
//
//	ArchiveName("sepolia", t, "5f0c1d2e-...") // returns "sepolia-20260301T120000Z-5f0c1d2e.json"
func ArchiveName(network string, completedAt time.Time, runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	name := fmt.Sprintf("%s-%s", safeName(network), completedAt.UTC().Format(archiveTimeLayout))
	if runID != "" {
		name += "-" + runID
	}
	return name + ".json"
}

// safeName lowercases and keeps [a-z0-9-_.], mapping spaces and slashes to
// hyphens.
func safeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '\\':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
