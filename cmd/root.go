// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/renew"
	"github.com/srl-labs/vault-ssh-renew/utils"
)

// Entrypoint returns the root command with all subcommands attached.
// Running the root command without a subcommand renews the certificate.
func Entrypoint() (*cobra.Command, error) {
	o := GetOptions()

	rootCmd := &cobra.Command{
		Use:   rootCmdName,
		Short: "renew the SSH host certificate of this machine with HashiCorp Vault",
		PersistentPreRunE: func(cobraCmd *cobra.Command, _ []string) error {
			return preRunFn(cobraCmd, o)
		},
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return renewFn(cobraCmd, o)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(rootCmd, o)

	for _, sub := range []func(*Options) (*cobra.Command, error){
		renewCmd,
		checkCmd,
		daemonCmd,
		versionCmd,
	} {
		c, err := sub(o)
		if err != nil {
			return nil, err
		}

		rootCmd.AddCommand(c)
	}

	return rootCmd, nil
}

func addGlobalFlags(c *cobra.Command, o *Options) {
	pf := c.PersistentFlags()

	pf.BoolVarP(&o.Global.Debug, "debug", "d", o.Global.Debug, "enable debug mode")
	pf.StringVarP(&o.Global.LogLevel, "log-level", "", o.Global.LogLevel,
		"logging level; one of [trace, debug, info, warning, error, fatal]")
	pf.StringVarP(&o.Global.EnvFile, "env-file", "", o.Global.EnvFile,
		"dotenv file loaded before reading the environment, skipped when the default is absent")
	pf.DurationVarP(&o.Global.Timeout, "timeout", "", o.Global.Timeout,
		"timeout for the sign request, e.g: 10s, 1m; 0 disables it")

	pf.StringVarP(&o.Vault.Addr, "addr", "", o.Vault.Addr, "address of the Vault server")
	pf.StringVarP(&o.Vault.Token, "token", "", o.Vault.Token, "Vault token used to sign the host key")
	pf.StringVarP(&o.Vault.Namespace, "namespace", "", o.Vault.Namespace, "Vault Enterprise namespace")
	pf.StringVarP(&o.Vault.SignPath, "ssh-sign-path", "", o.Vault.SignPath,
		"path of the SSH secrets engine sign endpoint, e.g: ssh/sign/host")

	pf.StringSliceVarP(&o.Host.Hostnames, "ssh-hostname", "", o.Host.Hostnames,
		"principals of the host certificate, defaults to the host name")
	pf.StringVarP(&o.Host.KeyPath, "ssh-host-key-path", "", o.Host.KeyPath, "path to the SSH host public key")
	pf.StringVarP(&o.Host.CertPath, "ssh-host-cert-path", "", o.Host.CertPath,
		"path to the SSH host certificate")
	pf.IntVarP(&o.Host.ThresholdDays, "renew-threshold-days", "", o.Host.ThresholdDays,
		"renew when the certificate expires within this many days")

	pf.StringVarP(&o.Hooks.OnRenew, "on-renew-hook", "", o.Hooks.OnRenew,
		"command run after a new certificate was installed")
	pf.StringVarP(&o.Hooks.OnFailure, "on-failure-hook", "", o.Hooks.OnFailure,
		"command run when the renewal failed")

	_ = c.MarkPersistentFlagFilename("env-file")
	_ = c.MarkPersistentFlagFilename("ssh-host-key-path", "pub")
	_ = c.MarkPersistentFlagFilename("ssh-host-cert-path", "pub")
}

func preRunFn(cobraCmd *cobra.Command, o *Options) error {
	if err := loadEnvFile(cobraCmd, o.Global.EnvFile); err != nil {
		return err
	}

	if err := initViper(cobraCmd.Root()); err != nil {
		return err
	}

	updateOptionsFromViper(cobraCmd, o)

	// setting log level
	switch {
	case o.Global.Debug:
		log.SetLevel(log.DebugLevel)
	default:
		l, err := log.ParseLevel(o.Global.LogLevel)
		if err != nil {
			return errors.Wrap(renewerrors.ErrIncorrectInput, err.Error())
		}

		log.SetLevel(l)
	}

	// setting output to stderr, so that json outputs can be parsed
	log.SetOutput(os.Stderr)

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is only an error when
// it was asked for explicitly.
func loadEnvFile(cobraCmd *cobra.Command, path string) error {
	if path == "" {
		return nil
	}

	explicit := false
	if f := cobraCmd.Flag("env-file"); f != nil {
		explicit = f.Changed
	}

	resolved, err := utils.ResolvePath(path)
	if err != nil {
		return errors.Wrapf(renewerrors.ErrIncorrectInput, "env file %q: %v", path, err)
	}

	if !utils.FileExists(resolved) {
		if explicit {
			return errors.Wrapf(renewerrors.ErrIncorrectInput, "env file %q not found", path)
		}

		return nil
	}

	if err := godotenv.Load(resolved); err != nil {
		return errors.WithStack(renewerrors.IOError(err, "loading env file %q", path))
	}

	log.Debugf("loaded environment from %s", resolved)

	return nil
}

// LogError logs an error returned by a command. Failures of the renewal
// workflow have already been logged by the workflow itself.
func LogError(err error) {
	if err == nil {
		return
	}

	var fe *renew.FailedError
	if errors.As(err, &fe) {
		return
	}

	log.Error(err)
	log.Debugf("%+v", err)
}
