// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package vault

// SignRequest is the body of a Vault SSH sign request.
type SignRequest struct {
	CertType        string `json:"cert_type"`
	PublicKey       string `json:"public_key"`
	ValidPrincipals string `json:"valid_principals"`
}

type signResponse struct {
	Data *signResponseData `json:"data"`
}

type signResponseData struct {
	SignedKey    string `json:"signed_key"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// SignedKey is a certificate issued by the signing service.
// It is only handed out by the client and is never empty.
type SignedKey struct {
	key    string
	serial string
}

// String returns the signed certificate exactly as received.
func (s *SignedKey) String() string {
	return s.key
}

// Bytes returns the signed certificate as bytes, ready to be written to disk.
func (s *SignedKey) Bytes() []byte {
	return []byte(s.key)
}

// Serial is the certificate serial reported by Vault, if any.
func (s *SignedKey) Serial() string {
	return s.serial
}
