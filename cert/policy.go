package cert

import "time"

// Status is the outcome of a renewal check.
type Status struct {
	needsRenewal bool
	publicKey    string
}

// NeedsRenewal reports whether a new certificate is required.
func (s *Status) NeedsRenewal() bool {
	return s.needsRenewal
}

// PublicKey is the key to submit for signing.
func (s *Status) PublicKey() string {
	return s.publicKey
}

// NeedsRenewal returns true when c is nil, not yet valid at now,
// or has lead or less of its validity left. Expired certificates
// fall into the last case.
func NeedsRenewal(c *Certificate, now time.Time, lead time.Duration) bool {
	if c == nil {
		return true
	}

	return now.Before(c.NotBefore) || c.NotAfter.Sub(now) <= lead
}
