package utils

import (
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/mitchellh/go-homedir"
)

// ResolvePath substitutes $VAR and ${VAR} references, expands a leading ~
// and returns a cleaned path. Referencing an unset variable is an error.
// Empty paths are returned as is.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return p, nil
	}

	substituted, err := envsubst.StringRestricted(p, true, false)
	if err != nil {
		return "", err
	}

	expanded, err := homedir.Expand(substituted)
	if err != nil {
		return "", err
	}

	return filepath.Clean(expanded), nil
}
