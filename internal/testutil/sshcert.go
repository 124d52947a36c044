// Package testutil builds OpenSSH host keys and certificates for tests.
package testutil

import (
	"crypto/dsa" //nolint:staticcheck
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// Validity window of the generated fixtures.
var (
	NotBefore = time.Date(2020, 7, 22, 0, 0, 0, 0, time.UTC)
	NotAfter  = time.Date(2020, 8, 23, 18, 0, 0, 0, time.UTC)
)

// Key algorithms understood by NewHostKey.
const (
	KeyRSA      = "rsa"
	KeyDSS      = "dss"
	KeyECDSA256 = "ecdsa256"
	KeyECDSA384 = "ecdsa384"
	KeyECDSA521 = "ecdsa521"
	KeyED25519  = "ed25519"
)

// Principal is the single principal of generated certificates.
const Principal = "nowhere.example.com"

// AllKeys lists every algorithm NewHostKey supports.
var AllKeys = []string{KeyRSA, KeyDSS, KeyECDSA256, KeyECDSA384, KeyECDSA521, KeyED25519}

// NewHostKey returns a public key of the given algorithm.
func NewHostKey(t testing.TB, alg string) ssh.PublicKey {
	t.Helper()

	var (
		raw any
		err error
	)

	switch alg {
	case KeyRSA:
		var k *rsa.PrivateKey
		k, err = rsa.GenerateKey(rand.Reader, 2048)
		if err == nil {
			raw = &k.PublicKey
		}
	case KeyDSS:
		// the signer never looks at the dsa key, fixed toy parameters are enough
		raw = &dsa.PublicKey{
			Parameters: dsa.Parameters{P: big.NewInt(23), Q: big.NewInt(11), G: big.NewInt(4)},
			Y:          big.NewInt(8),
		}
	case KeyECDSA256, KeyECDSA384, KeyECDSA521:
		curve := map[string]elliptic.Curve{
			KeyECDSA256: elliptic.P256(),
			KeyECDSA384: elliptic.P384(),
			KeyECDSA521: elliptic.P521(),
		}[alg]

		var k *ecdsa.PrivateKey
		k, err = ecdsa.GenerateKey(curve, rand.Reader)
		if err == nil {
			raw = &k.PublicKey
		}
	case KeyED25519:
		raw, _, err = ed25519.GenerateKey(rand.Reader)
	default:
		t.Fatalf("unknown key algorithm %q", alg)
	}

	if err != nil {
		t.Fatalf("generating %s key: %v", alg, err)
	}

	pub, err := ssh.NewPublicKey(raw)
	if err != nil {
		t.Fatalf("wrapping %s key: %v", alg, err)
	}

	return pub
}

// NewHostCert signs pub as a host certificate valid from notBefore to notAfter
// and returns it in the "<type> <base64>\n" file format.
func NewHostCert(t testing.TB, pub ssh.PublicKey, notBefore, notAfter time.Time) []byte {
	t.Helper()

	_, caKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating ca key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(caKey)
	if err != nil {
		t.Fatalf("creating ca signer: %v", err)
	}

	c := &ssh.Certificate{
		Key:             pub,
		Serial:          42,
		CertType:        ssh.HostCert,
		KeyId:           Principal,
		ValidPrincipals: []string{Principal},
		ValidAfter:      uint64(notBefore.Unix()),
		ValidBefore:     uint64(notAfter.Unix()),
	}

	if err := c.SignCert(rand.Reader, signer); err != nil {
		t.Fatalf("signing certificate: %v", err)
	}

	return ssh.MarshalAuthorizedKey(c)
}

// HostFiles are the paths of a generated key and certificate pair.
type HostFiles struct {
	Dir      string
	KeyPath  string
	CertPath string
}

// WriteHostFiles writes a public key of the given algorithm into a temp dir.
// When withCert is set a certificate valid from NotBefore to NotAfter is written too.
func WriteHostFiles(t testing.TB, alg string, withCert bool) HostFiles {
	t.Helper()

	dir := t.TempDir()
	hf := HostFiles{
		Dir:      dir,
		KeyPath:  filepath.Join(dir, alg+".pub"),
		CertPath: filepath.Join(dir, alg+"-cert.pub"),
	}

	pub := NewHostKey(t, alg)
	WriteFile(t, hf.KeyPath, string(ssh.MarshalAuthorizedKey(pub)))

	if withCert {
		WriteFile(t, hf.CertPath, string(NewHostCert(t, pub, NotBefore, NotAfter)))
	}

	return hf
}

// WriteFile writes content to path or fails the test.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}

	return string(b)
}

// ReplaceHeader swaps the type token of a certificate file content.
func ReplaceHeader(content []byte, header string) string {
	_, payload, _ := strings.Cut(string(content), " ")
	return header + " " + payload
}
