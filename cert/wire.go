// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cert

import (
	"github.com/pkg/errors"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"golang.org/x/crypto/cryptobyte"
)

// wireReader walks an SSH wire format payload (RFC 4251 section 5).
// Only the presence and length of fields is checked, never their content.
type wireReader struct {
	s cryptobyte.String
}

func newWireReader(b []byte) *wireReader {
	return &wireReader{s: cryptobyte.String(b)}
}

// readString reads a uint32 length prefixed byte string.
func (r *wireReader) readString(field string) ([]byte, error) {
	var n uint32
	if !r.s.ReadUint32(&n) {
		return nil, truncated(field)
	}

	var b []byte
	if !r.s.ReadBytes(&b, int(n)) {
		return nil, truncated(field)
	}

	return b, nil
}

// skipString advances past a string field. mpint fields share the same framing.
func (r *wireReader) skipString(field string) error {
	var n uint32
	if !r.s.ReadUint32(&n) || !r.s.Skip(int(n)) {
		return truncated(field)
	}

	return nil
}

func (r *wireReader) skipUint32(field string) error {
	var v uint32
	if !r.s.ReadUint32(&v) {
		return truncated(field)
	}

	return nil
}

func (r *wireReader) readUint64(field string) (uint64, error) {
	var v uint64
	if !r.s.ReadUint64(&v) {
		return 0, truncated(field)
	}

	return v, nil
}

func truncated(field string) error {
	return errors.Wrapf(renewerrors.ErrMalformedCertificateFile, "payload truncated at field %q", field)
}
