package cmd

import (
	"context"
	"errors"
	"testing"

	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/internal/testutil"
)

func TestNewScheduler(t *testing.T) {
	for _, schedule := range []string{"@every 12h", "@daily", "0 3 * * *"} {
		c, err := newScheduler(schedule, func() {})
		if err != nil {
			t.Errorf("newScheduler(%q) error = %v", schedule, err)
			continue
		}

		if n := len(c.Entries()); n != 1 {
			t.Errorf("newScheduler(%q) has %d entries, want 1", schedule, n)
		}
	}

	for _, schedule := range []string{"", "every day", "61 * * * *"} {
		if _, err := newScheduler(schedule, func() {}); !errors.Is(err, renewerrors.ErrIncorrectInput) {
			t.Errorf("newScheduler(%q) expected ErrIncorrectInput, got %v", schedule, err)
		}
	}
}

func TestNewRunID(t *testing.T) {
	a, b := newRunID(), newRunID()

	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("newRunID() = %q, %q, want 8 characters", a, b)
	}

	if a == b {
		t.Errorf("newRunID() returned %q twice", a)
	}
}

func TestDaemonStopsWithContext(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, true)

	optionsInstance = nil
	o := GetOptions()
	o.Vault.Token = "mytoken"
	o.Vault.SignPath = "ssh/sign/host"
	o.Host.KeyPath = hf.KeyPath
	o.Host.CertPath = hf.CertPath
	o.Host.Hostnames = []string{testutil.Principal}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := daemonFn(ctx, o); err != nil {
		t.Fatalf("daemonFn() error = %v", err)
	}

	o.Daemon.Schedule = "sometimes"

	if err := daemonFn(context.Background(), o); !errors.Is(err, renewerrors.ErrIncorrectInput) {
		t.Errorf("expected ErrIncorrectInput for a bad schedule, got %v", err)
	}
}
