package cert

import (
	"testing"
	"time"

	"github.com/srl-labs/vault-ssh-renew/internal/testutil"
)

func TestNeedsRenewal(t *testing.T) {
	day := 24 * time.Hour
	c := &Certificate{
		Type:      TypeRSA,
		NotBefore: testutil.NotBefore,
		NotAfter:  testutil.NotAfter,
	}

	tests := []struct {
		name string
		cert *Certificate
		now  time.Time
		lead time.Duration
		want bool
	}{
		{
			name: "recent certificate",
			cert: c,
			now:  time.Date(2020, 7, 22, 23, 0, 0, 0, time.UTC),
			lead: day,
			want: false,
		},
		{
			name: "expiring within lead time",
			cert: c,
			now:  time.Date(2020, 8, 23, 12, 0, 0, 0, time.UTC),
			lead: day,
			want: true,
		},
		{
			name: "not yet valid",
			cert: c,
			now:  time.Date(2020, 7, 21, 12, 0, 0, 0, time.UTC),
			lead: day,
			want: true,
		},
		{
			name: "expired",
			cert: c,
			now:  time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC),
			lead: 0,
			want: true,
		},
		{
			name: "exactly lead time left",
			cert: c,
			now:  testutil.NotAfter.Add(-day),
			lead: day,
			want: true,
		},
		{
			name: "no certificate with zero lead time",
			now:  time.Date(2020, 7, 22, 23, 0, 0, 0, time.UTC),
			lead: 0,
			want: true,
		},
		{
			name: "no certificate with large lead time",
			now:  time.Date(2020, 7, 22, 23, 0, 0, 0, time.UTC),
			lead: 365 * day,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRenewal(tt.cert, tt.now, tt.lead); got != tt.want {
				t.Errorf("NeedsRenewal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckRenewalKeepsPublicKey(t *testing.T) {
	h := &HostCertificate{publicKey: "ssh-ed25519 AAAA host"}

	s := h.CheckRenewal(time.Now(), time.Hour)
	if !s.NeedsRenewal() {
		t.Errorf("expected renewal without a certificate")
	}

	if s.PublicKey() != "ssh-ed25519 AAAA host" {
		t.Errorf("PublicKey() = %q", s.PublicKey())
	}
}
