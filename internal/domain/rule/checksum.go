package rule

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Checksum computes the deterministic content hash stored alongside every
// rule record and recomputed on read to detect corruption. The canonical form
// is a JSON object with sorted keys (encoding/json sorts map keys) and the
// creation timestamp rendered as UTC RFC3339 at second precision, the same
// precision the stores persist, so a write/read round-trip hashes identically.
// The hash is SHA-256 truncated to 16 hex characters.
func (r *SecurityRule) Checksum() string {
	canonical := map[string]interface{}{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"severity":    string(r.Severity),
		"pattern":     r.Pattern,
		"remediation": r.Remediation,
		"origin":      string(r.Origin),
		"status":      string(r.Status),
		"created_at":  r.CreatedAt.UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
