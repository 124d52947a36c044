// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package errors

import (
	"errors"
	"fmt"
)

// ErrMalformedCertificateFile is returned when the certificate file is not
// a "<type> <base64 payload>" pair or when its payload can't be decoded.
var ErrMalformedCertificateFile = errors.New("malformed certificate file")

// ErrCertificateTypeMismatch is returned when the type in the certificate header
// differs from the type embedded in the certificate payload.
var ErrCertificateTypeMismatch = errors.New("certificate type mismatch")

// ErrUnsupportedCertificateType is returned for certificate types without a decoder.
var ErrUnsupportedCertificateType = errors.New("unsupported certificate type")

// ErrSigningFailed is returned when the signing service does not produce a signed key.
var ErrSigningFailed = errors.New("signing failed")

// ErrIO is returned when reading or writing key and certificate files fails.
var ErrIO = errors.New("i/o failure")

// ErrIncorrectInput is returned when the user input is incorrect.
var ErrIncorrectInput = errors.New("incorrect input")

// SigningError carries the response of a failed signing request.
type SigningError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SigningError) Error() string {
	msg := ErrSigningFailed.Error()

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (%d)", msg, e.StatusCode)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}

	return msg
}

// Unwrap makes SigningError match ErrSigningFailed as well as the transport error, if any.
func (e *SigningError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSigningFailed, e.Err}
	}

	return []error{ErrSigningFailed}
}

// IOError wraps err as an ErrIO. Both stay reachable through errors.Is,
// so callers can still test for fs.ErrNotExist or fs.ErrPermission.
func IOError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, fmt.Sprintf(format, args...), err)
}
