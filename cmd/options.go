package cmd

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/srl-labs/vault-ssh-renew/constants"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/renew"
	"github.com/srl-labs/vault-ssh-renew/utils"
	"github.com/srl-labs/vault-ssh-renew/vault"
)

var optionsInstance *Options //nolint:gochecknoglobals

// maxThresholdDays is the largest threshold that fits in a time.Duration.
const maxThresholdDays = int(math.MaxInt64 / int64(24*time.Hour))

// GetOptions returns the global options instance if it exists
// or creates a new one with default values for all options.
func GetOptions() *Options {
	if optionsInstance == nil {
		optionsInstance = &Options{
			Global: &GlobalOptions{
				Timeout:  constants.DefaultRequestTimeout,
				LogLevel: constants.DefaultLogLevel,
				EnvFile:  constants.DefaultEnvFile,
			},
			Vault: &VaultOptions{
				Addr: constants.DefaultVaultAddr,
			},
			Host: &HostOptions{
				KeyPath:       constants.DefaultHostKeyPath,
				CertPath:      constants.DefaultHostCertPath,
				ThresholdDays: constants.DefaultThresholdDays,
			},
			Hooks: &HookOptions{},
			Check: &CheckOptions{
				Format: constants.FormatPlain,
			},
			Daemon: &DaemonOptions{
				Schedule: constants.DefaultDaemonSchedule,
			},
		}
	}

	return optionsInstance
}

// Options holds the values of all command line flags.
type Options struct {
	Global *GlobalOptions
	Vault  *VaultOptions
	Host   *HostOptions
	Hooks  *HookOptions
	Check  *CheckOptions
	Daemon *DaemonOptions
}

type GlobalOptions struct {
	Debug    bool
	LogLevel string
	EnvFile  string
	Timeout  time.Duration
}

type VaultOptions struct {
	Addr      string
	Token     string
	Namespace string
	SignPath  string
}

type HostOptions struct {
	KeyPath   string
	CertPath  string
	Hostnames []string
	// ThresholdDays is the remaining validity in days that triggers a renewal.
	ThresholdDays int
}

type HookOptions struct {
	OnRenew   string
	OnFailure string
}

type CheckOptions struct {
	Format string
}

type DaemonOptions struct {
	Schedule   string
	RunOnStart bool
}

// threshold returns the renewal lead time.
func (o *HostOptions) threshold() time.Duration {
	return time.Duration(o.ThresholdDays) * 24 * time.Hour
}

// paths returns the ~ expanded key and certificate paths.
func (o *HostOptions) paths() (keyPath, certPath string, err error) {
	keyPath, err = utils.ResolvePath(o.KeyPath)
	if err != nil {
		return "", "", errors.Wrapf(renewerrors.ErrIncorrectInput, "host key path %q: %v", o.KeyPath, err)
	}

	certPath, err = utils.ResolvePath(o.CertPath)
	if err != nil {
		return "", "", errors.Wrapf(renewerrors.ErrIncorrectInput, "host certificate path %q: %v", o.CertPath, err)
	}

	return keyPath, certPath, nil
}

// principals returns the configured host names, defaulting to the name of this host.
func (o *HostOptions) principals() []string {
	var out []string

	for _, h := range o.Hostnames {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}

	if len(out) == 0 {
		out = []string{utils.FQDN()}
	}

	return out
}

// ToWorkflowConfig builds the renewal workflow input from the options.
func (o *Options) ToWorkflowConfig() (renew.Config, error) {
	keyPath, certPath, err := o.Host.paths()
	if err != nil {
		return renew.Config{}, err
	}

	if o.Host.ThresholdDays < 0 {
		return renew.Config{}, errors.Wrapf(renewerrors.ErrIncorrectInput,
			"renew threshold must not be negative, got %d days", o.Host.ThresholdDays)
	}

	if o.Host.ThresholdDays > maxThresholdDays {
		return renew.Config{}, errors.Wrapf(renewerrors.ErrIncorrectInput,
			"renew threshold must be at most %d days, got %d", maxThresholdDays, o.Host.ThresholdDays)
	}

	return renew.Config{
		KeyPath:       keyPath,
		CertPath:      certPath,
		SignPath:      strings.TrimSpace(o.Vault.SignPath),
		Principals:    o.Host.principals(),
		Threshold:     o.Host.threshold(),
		OnRenewHook:   o.Hooks.OnRenew,
		OnFailureHook: o.Hooks.OnFailure,
	}, nil
}

// ToVaultClient returns a signing client for the configured Vault server.
func (o *Options) ToVaultClient() (*vault.Client, error) {
	return vault.NewClient(o.Vault.Addr, o.Vault.Token,
		vault.WithNamespace(o.Vault.Namespace),
		vault.WithUserAgent("vault-ssh-renew/"+Version),
	)
}

// ToWorkflow returns a renewal workflow wired to the Vault client.
func (o *Options) ToWorkflow(opts ...renew.Option) (*renew.Workflow, error) {
	cfg, err := o.ToWorkflowConfig()
	if err != nil {
		return nil, err
	}

	client, err := o.ToVaultClient()
	if err != nil {
		return nil, err
	}

	opts = append([]renew.Option{renew.WithTimeout(o.Global.Timeout)}, opts...)

	return renew.NewWorkflow(cfg, client, opts...)
}
