package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/engine"
)

// HashContent computes the SHA-256 hash of content and returns it
// hex-encoded. Returns an empty string if content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashString is a convenience function that hashes a string.
func HashString(content string) string {
	return HashContent([]byte(content))
}

// HashTrace hashes the canonical JSON form of a trace, so the hash is stable
// across map ordering and storage round trips.
func HashTrace(trace engine.DecisionTrace) string {
	return HashString(policy.CanonicalJSON(trace))
}

// HashPolicy hashes the canonical JSON form of a policy. Returns an empty
// string for a nil policy.
func HashPolicy(p *policy.Policy) string {
	if p == nil {
		return ""
	}
	return HashString(policy.CanonicalJSON(p))
}

// Verify recomputes the trace hash of record and reports a mismatch.
func Verify(record *evidence.Record) error {
	if got := HashTrace(record.Trace); got != record.TraceHash {
		return evidence.NewRecorderError(record.ID,
			fmt.Errorf("trace hash mismatch: stored %s, computed %s", record.TraceHash, got))
	}
	return nil
}
