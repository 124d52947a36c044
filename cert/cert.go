// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cert

import (
	"encoding/base64"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"golang.org/x/crypto/ssh"
)

// maxUnix is 9999-12-31T23:59:59Z. Larger validity timestamps, like the
// OpenSSH "forever" value of 2^64-1, are clamped to it.
const maxUnix = 253402300799

// Certificate holds the parts of an OpenSSH certificate needed to decide on renewal.
type Certificate struct {
	Type      string
	NotBefore time.Time
	NotAfter  time.Time
}

// HostCertificate is the host public key together with its certificate, if one exists.
type HostCertificate struct {
	publicKey string
	cert      *Certificate
}

// Read loads the public key at keyPath and the certificate at certPath.
// A missing certificate file is not an error, Certificate() then returns nil.
func Read(keyPath, certPath string) (*HostCertificate, error) {
	pub, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.WithStack(renewerrors.IOError(err, "reading public key %s", keyPath))
	}

	h := &HostCertificate{publicKey: string(pub)}
	logKeyFingerprint(keyPath, pub)

	data, err := os.ReadFile(certPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debugf("no certificate found at %s", certPath)
		return h, nil
	case err != nil:
		return nil, errors.WithStack(renewerrors.IOError(err, "reading certificate %s", certPath))
	}

	h.cert, err = Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "certificate %s", certPath)
	}

	log.Debugf("certificate %s of type %s valid from %s to %s", certPath,
		h.cert.Type, h.cert.NotBefore.Format(time.RFC3339), h.cert.NotAfter.Format(time.RFC3339))

	return h, nil
}

// PublicKey returns the public key file content exactly as read.
func (h *HostCertificate) PublicKey() string {
	return h.publicKey
}

// Certificate returns the decoded certificate or nil if there is none.
func (h *HostCertificate) Certificate() *Certificate {
	return h.cert
}

// CheckRenewal evaluates the renewal policy at now with the given lead time.
func (h *HostCertificate) CheckRenewal(now time.Time, lead time.Duration) *Status {
	return &Status{
		needsRenewal: NeedsRenewal(h.cert, now, lead),
		publicKey:    h.publicKey,
	}
}

// Parse decodes the "<type> <base64 payload>" content of a certificate file.
func Parse(data []byte) (*Certificate, error) {
	tokens := strings.Split(strings.TrimSpace(string(data)), " ")
	if len(tokens) != 2 {
		return nil, errors.Wrapf(renewerrors.ErrMalformedCertificateFile,
			"expected 2 space separated tokens, got %d", len(tokens))
	}

	header := tokens[0]

	payload, err := base64.StdEncoding.DecodeString(tokens[1])
	if err != nil {
		return nil, errors.Wrapf(renewerrors.ErrMalformedCertificateFile, "decoding payload: %v", err)
	}

	r := newWireReader(payload)

	embedded, err := r.readString("type")
	if err != nil {
		return nil, err
	}

	if string(embedded) != header {
		return nil, errors.Wrapf(renewerrors.ErrCertificateTypeMismatch,
			"header says %q, payload says %q", header, embedded)
	}

	layout, ok := families[header]
	if !ok {
		return nil, errors.Wrapf(renewerrors.ErrUnsupportedCertificateType,
			"%q, supported types are %s", header, strings.Join(SupportedTypes(), ", "))
	}

	if err := layout.skip(r); err != nil {
		return nil, err
	}

	validAfter, err := r.readUint64("valid after")
	if err != nil {
		return nil, err
	}

	validBefore, err := r.readUint64("valid before")
	if err != nil {
		return nil, err
	}

	return &Certificate{
		Type:      header,
		NotBefore: epochToTime(validAfter),
		NotAfter:  epochToTime(validBefore),
	}, nil
}

func epochToTime(v uint64) time.Time {
	if v > maxUnix {
		v = maxUnix
	}

	return time.Unix(int64(v), 0).UTC()
}

func logKeyFingerprint(path string, pub []byte) {
	key, _, _, _, err := ssh.ParseAuthorizedKey(pub)
	if err != nil {
		log.Warnf("public key %s could not be parsed, sending it as is: %v", path, err)
		return
	}

	log.Debugf("host key %s: %s %s", path, key.Type(), ssh.FingerprintSHA256(key))
}
