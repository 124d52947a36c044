package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/h2non/gock"
	"github.com/mitchellh/go-homedir"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/internal/testutil"
	"github.com/srl-labs/vault-ssh-renew/renew"
	"github.com/srl-labs/vault-ssh-renew/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVaultAddr = "http://127.0.0.1:8200"
	testSignPath  = "ssh/sign/host"
)

// renewArgs returns the arguments of a renew run against the fixture files.
// The generated certificates expired in 2020, so every run renews.
func renewArgs(hf testutil.HostFiles, renewed, failed string) []string {
	return []string{
		"renew",
		"--addr", testVaultAddr,
		"--token", "mytoken",
		"--ssh-sign-path", testSignPath,
		"--ssh-hostname", testutil.Principal,
		"--ssh-host-key-path", hf.KeyPath,
		"--ssh-host-cert-path", hf.CertPath,
		"--on-renew-hook", "touch " + renewed,
		"--on-failure-hook", "touch " + failed,
	}
}

func TestRenewCommand(t *testing.T) {
	defer gock.Off()

	gock.New(testVaultAddr).
		Post("/v1/"+testSignPath).
		MatchHeader("X-Vault-Token", "mytoken").
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"signed_key": "foo"}})

	hf := testutil.WriteHostFiles(t, testutil.KeyED25519, true)
	renewed := filepath.Join(hf.Dir, "renewed")
	failed := filepath.Join(hf.Dir, "failed")

	optionsInstance = nil

	cmd, err := Entrypoint()
	require.NoError(t, err)

	cmd.SetArgs(renewArgs(hf, renewed, failed))

	require.NoError(t, cmd.Execute())

	assert.Equal(t, "foo", testutil.ReadFile(t, hf.CertPath))
	assert.True(t, utils.FileExists(renewed), "renew hook must run")
	assert.False(t, utils.FileExists(failed))
	assert.True(t, gock.IsDone())
}

func TestRootCommandRenews(t *testing.T) {
	defer gock.Off()

	gock.New(testVaultAddr).
		Post("/v1/" + testSignPath).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"signed_key": "foo"}})

	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, false)

	optionsInstance = nil

	cmd, err := Entrypoint()
	require.NoError(t, err)

	// drop the subcommand name, the root runs the same workflow
	cmd.SetArgs(renewArgs(hf, filepath.Join(hf.Dir, "renewed"), filepath.Join(hf.Dir, "failed"))[1:])

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "foo", testutil.ReadFile(t, hf.CertPath))
}

func TestRenewCommandFailure(t *testing.T) {
	defer gock.Off()

	gock.New(testVaultAddr).
		Post("/v1/" + testSignPath).
		Reply(403).
		JSON(map[string]any{"errors": []string{"permission denied"}})

	hf := testutil.WriteHostFiles(t, testutil.KeyECDSA256, true)
	before := testutil.ReadFile(t, hf.CertPath)
	renewed := filepath.Join(hf.Dir, "renewed")
	failed := filepath.Join(hf.Dir, "failed")

	optionsInstance = nil

	cmd, err := Entrypoint()
	require.NoError(t, err)

	cmd.SetArgs(renewArgs(hf, renewed, failed))

	err = cmd.Execute()

	var fe *renew.FailedError
	require.ErrorAs(t, err, &fe, "a failed run makes the process exit with 1")
	assert.Equal(t, renew.ReasonSign, fe.Reason)
	assert.Equal(t, before, testutil.ReadFile(t, hf.CertPath))
	assert.True(t, utils.FileExists(failed), "failure hook must run")
	assert.False(t, utils.FileExists(renewed))
}

func TestRenewCommandRequiresToken(t *testing.T) {
	hf := testutil.WriteHostFiles(t, testutil.KeyRSA, true)

	defer setEnvWithCleanup("VAULT_TOKEN", "")()

	optionsInstance = nil

	cmd, err := Entrypoint()
	require.NoError(t, err)

	// drop --token and its value
	args := renewArgs(hf, filepath.Join(hf.Dir, "renewed"), filepath.Join(hf.Dir, "failed"))
	cmd.SetArgs(append(args[:3:3], args[5:]...))

	err = cmd.Execute()
	assert.ErrorIs(t, err, renewerrors.ErrIncorrectInput)

	var fe *renew.FailedError
	assert.False(t, errors.As(err, &fe), "configuration errors happen before the workflow starts")
}

func TestToWorkflowConfig(t *testing.T) {
	defer setEnvWithCleanup("HOME", "/home/renew")()

	homedir.DisableCache = true
	defer func() { homedir.DisableCache = false }()

	optionsInstance = nil
	o := GetOptions()
	o.Vault.SignPath = " " + testSignPath + " "
	o.Host.KeyPath = "~/keys/host.pub"
	o.Host.Hostnames = []string{" a.example.com ", ""}
	o.Host.ThresholdDays = 2

	cfg, err := o.ToWorkflowConfig()
	require.NoError(t, err)

	assert.Equal(t, testSignPath, cfg.SignPath)
	assert.Equal(t, []string{"a.example.com"}, cfg.Principals)
	assert.Equal(t, "48h0m0s", cfg.Threshold.String())
	assert.Equal(t, "/home/renew/keys/host.pub", cfg.KeyPath)
	assert.Equal(t, "/etc/ssh/ssh_host_rsa_key-cert.pub", cfg.CertPath)

	o.Host.Hostnames = nil
	cfg, err = o.ToWorkflowConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Principals, 1)
	assert.NotEmpty(t, cfg.Principals[0], "the host name is the default principal")

	o.Host.ThresholdDays = -1
	_, err = o.ToWorkflowConfig()
	assert.ErrorIs(t, err, renewerrors.ErrIncorrectInput)

	o.Host.ThresholdDays = maxThresholdDays
	cfg, err = o.ToWorkflowConfig()
	require.NoError(t, err)
	assert.Positive(t, cfg.Threshold, "the largest threshold must not wrap around")

	o.Host.ThresholdDays = 200000
	_, err = o.ToWorkflowConfig()
	assert.ErrorIs(t, err, renewerrors.ErrIncorrectInput)
}
