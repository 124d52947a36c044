package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/srl-labs/vault-ssh-renew/cert"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/internal/testutil"
)

func checkOptions(hf testutil.HostFiles, format string) *Options {
	optionsInstance = nil

	o := GetOptions()
	o.Host.KeyPath = hf.KeyPath
	o.Host.CertPath = hf.CertPath
	o.Check.Format = format

	return o
}

// tableCells returns the trimmed cells of the table row that starts with first.
func tableCells(t *testing.T, out, first string) []string {
	t.Helper()

	for _, line := range strings.Split(out, "\n") {
		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}

		if cells[0] == first {
			return cells
		}
	}

	t.Fatalf("no table row starting with %q in:\n%s", first, out)

	return nil
}

func TestCheckPlain(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyED25519, true)

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{
			name: "recent certificate",
			now:  time.Date(2020, 7, 23, 0, 0, 0, 0, time.UTC),
			want: []string{
				hf.CertPath, cert.TypeED25519, "2020-07-22T00:00:00Z",
				"2020-08-23T18:00:00Z", "1 month from now", "false",
			},
		},
		{
			name: "expiring certificate",
			now:  time.Date(2020, 8, 20, 0, 0, 0, 0, time.UTC),
			want: []string{
				hf.CertPath, cert.TypeED25519, "2020-07-22T00:00:00Z",
				"2020-08-23T18:00:00Z", "3 days from now", "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			if err := checkFn(&buf, checkOptions(hf, "plain"), tt.now); err != nil {
				t.Fatalf("checkFn() error = %v", err)
			}

			out := buf.String()

			header := tableCells(t, out, "Certificate")
			if diff := cmp.Diff([]string{
				"Certificate", "Type", "Valid After", "Valid Before", "Expires", "Needs Renewal",
			}, header); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tt.want, tableCells(t, out, hf.CertPath)); diff != "" {
				t.Errorf("row mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckPlainWithoutCertificate(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, false)

	var buf bytes.Buffer

	if err := checkFn(&buf, checkOptions(hf, "plain"), time.Now()); err != nil {
		t.Fatalf("checkFn() error = %v", err)
	}

	want := []string{hf.CertPath, "none", "-", "-", "-", "true"}

	if diff := cmp.Diff(want, tableCells(t, buf.String(), hf.CertPath)); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckJSONWithoutCertificate(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, false)

	var buf bytes.Buffer

	if err := checkFn(&buf, checkOptions(hf, "json"), time.Now()); err != nil {
		t.Fatalf("checkFn() error = %v", err)
	}

	var got checkResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}

	want := checkResult{CertPath: hf.CertPath, NeedsRenewal: true}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(checkResult{})); diff != "" {
		t.Errorf("check mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckErrors(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, true)

	err := checkFn(&bytes.Buffer{}, checkOptions(hf, "yaml"), time.Now())
	if !errors.Is(err, renewerrors.ErrIncorrectInput) {
		t.Errorf("expected ErrIncorrectInput for an unknown format, got %v", err)
	}

	testutil.WriteFile(t, hf.CertPath, "garbage")

	err = checkFn(&bytes.Buffer{}, checkOptions(hf, "plain"), time.Now())
	if !errors.Is(err, renewerrors.ErrMalformedCertificateFile) {
		t.Errorf("expected ErrMalformedCertificateFile, got %v", err)
	}
}
