// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cert

import "sort"

// Certificate types that can be decoded.
const (
	TypeRSA      = "ssh-rsa-cert-v01@openssh.com"
	TypeDSS      = "ssh-dss-cert-v01@openssh.com"
	TypeECDSA256 = "ecdsa-sha2-nistp256-cert-v01@openssh.com"
	TypeECDSA384 = "ecdsa-sha2-nistp384-cert-v01@openssh.com"
	TypeECDSA521 = "ecdsa-sha2-nistp521-cert-v01@openssh.com"
	TypeED25519  = "ssh-ed25519-cert-v01@openssh.com"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindMpint
	kindUint32
	kindUint64
)

type field struct {
	name string
	kind fieldKind
}

// fieldSkipper lists the fields between the leading type string
// and the valid after/valid before pair of a certificate payload.
type fieldSkipper []field

func family(key ...field) fieldSkipper {
	fs := []field{{"nonce", kindString}}
	fs = append(fs, key...)

	return append(fs,
		field{"serial", kindUint64},
		field{"type", kindUint32},
		field{"key id", kindString},
		field{"valid principals", kindString},
	)
}

var (
	rsaFields = family(
		field{"e", kindMpint},
		field{"n", kindMpint},
	)
	dssFields = family(
		field{"p", kindMpint},
		field{"q", kindMpint},
		field{"g", kindMpint},
		field{"y", kindMpint},
	)
	ecdsaFields = family(
		field{"curve", kindString},
		field{"public key", kindString},
	)
	ed25519Fields = family(
		field{"pk", kindString},
	)
)

// families maps every supported certificate type to its field layout.
var families = map[string]fieldSkipper{
	TypeRSA:      rsaFields,
	TypeDSS:      dssFields,
	TypeECDSA256: ecdsaFields,
	TypeECDSA384: ecdsaFields,
	TypeECDSA521: ecdsaFields,
	TypeED25519:  ed25519Fields,
}

// SupportedTypes returns the sorted list of certificate types that can be decoded.
func SupportedTypes() []string {
	types := make([]string, 0, len(families))
	for t := range families {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// skip advances r past every field of the layout.
func (fs fieldSkipper) skip(r *wireReader) error {
	for _, f := range fs {
		var err error

		switch f.kind {
		case kindString, kindMpint:
			err = r.skipString(f.name)
		case kindUint32:
			err = r.skipUint32(f.name)
		case kindUint64:
			_, err = r.readUint64(f.name)
		}

		if err != nil {
			return err
		}
	}

	return nil
}
