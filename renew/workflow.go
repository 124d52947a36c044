// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package renew sequences the certificate check, the sign request and the
// installation of a new host certificate.
package renew

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/srl-labs/vault-ssh-renew/cert"
	"github.com/srl-labs/vault-ssh-renew/constants"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
	"github.com/srl-labs/vault-ssh-renew/exec"
	"github.com/srl-labs/vault-ssh-renew/utils"
	"github.com/srl-labs/vault-ssh-renew/vault"
)

// Signer issues host certificates.
type Signer interface {
	SignHostKey(ctx context.Context, signPath, publicKey string, principals []string) (*vault.SignedKey, error)
}

// HookRunner runs a hook command. Its outcome is never inspected.
type HookRunner func(ctx context.Context, name, cmd string)

// Config is the per host input of a workflow run.
type Config struct {
	KeyPath    string
	CertPath   string
	SignPath   string
	Principals []string
	// Threshold is the remaining validity below which the certificate is renewed.
	Threshold     time.Duration
	OnRenewHook   string
	OnFailureHook string
}

// Workflow renews the host certificate when needed.
// A Workflow is not safe for concurrent use, every Run starts from StateStart.
type Workflow struct {
	cfg     Config
	signer  Signer
	now     func() time.Time
	timeout time.Duration
	runHook HookRunner
	state   State
}

type Option func(w *Workflow) error

// WithClock sets the time source used for the renewal decision.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) error {
		if now == nil {
			return errors.New("nil clock")
		}

		w.now = now

		return nil
	}
}

// WithTimeout bounds the sign request. Zero means no bound besides the run context.
func WithTimeout(d time.Duration) Option {
	return func(w *Workflow) error {
		if d < 0 {
			return errors.New("negative timeouts are not allowed")
		}

		w.timeout = d

		return nil
	}
}

// WithHookRunner replaces the command runner used for hooks.
func WithHookRunner(r HookRunner) Option {
	return func(w *Workflow) error {
		w.runHook = r
		return nil
	}
}

// NewWorkflow returns a workflow for cfg signing with s.
func NewWorkflow(cfg Config, s Signer, opts ...Option) (*Workflow, error) {
	switch {
	case cfg.KeyPath == "":
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "host key path is not set")
	case cfg.CertPath == "":
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "host certificate path is not set")
	case cfg.SignPath == "":
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "sign path is not set")
	case len(cfg.Principals) == 0:
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "no principals given")
	case cfg.Threshold < 0:
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "renewal threshold is negative")
	case s == nil:
		return nil, errors.New("nil signer")
	}

	w := &Workflow{
		cfg:    cfg,
		signer: s,
		now:    time.Now,
		runHook: func(ctx context.Context, name, cmd string) {
			exec.RunHook(ctx, name, cmd)
		},
	}

	for _, o := range opts {
		if err := o(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// State returns the state the last Run ended in.
func (w *Workflow) State() State {
	return w.state
}

// Run performs one renewal cycle. It returns nil when the certificate is still
// valid or was renewed, and a *FailedError otherwise. The failure hook runs on
// every failure, the renew hook only after a new certificate was installed.
func (w *Workflow) Run(ctx context.Context) error {
	w.state = StateStart

	status, err := w.check()
	if err != nil {
		return w.fail(ctx, ReasonDecode, err, "An error occurred when checking certificate status")
	}

	if !status.NeedsRenewal() {
		w.state = StateNoRenewal
		log.Info("No renewal required")

		return nil
	}

	w.state = StateRenewalNeeded
	log.Infof("Certificate %s needs to be renewed", w.cfg.CertPath)

	signed, err := w.sign(ctx, status.PublicKey())
	if err != nil {
		return w.fail(ctx, ReasonSign, err, "An error occurred when renewing the certificate")
	}

	w.state = StateSigned
	log.Debugf("Vault returned certificate %s", signed)

	if err := InstallCertificate(signed, w.cfg.CertPath); err != nil {
		return w.fail(ctx, ReasonInstall, err, "An error occurred when installing the certificate")
	}

	w.state = StateInstalled

	if serial := signed.Serial(); serial != "" {
		log.Infof("Certificate renewed and written to %s (serial %s)", w.cfg.CertPath, serial)
	} else {
		log.Infof("Certificate renewed and written to %s", w.cfg.CertPath)
	}

	w.hook(ctx, "renew", w.cfg.OnRenewHook)

	return nil
}

func (w *Workflow) check() (*cert.Status, error) {
	h, err := cert.Read(w.cfg.KeyPath, w.cfg.CertPath)
	if err != nil {
		return nil, err
	}

	w.state = StateDecoded

	return h.CheckRenewal(w.now().UTC(), w.cfg.Threshold), nil
}

func (w *Workflow) sign(ctx context.Context, publicKey string) (*vault.SignedKey, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)

		defer cancel()
	}

	return w.signer.SignHostKey(ctx, w.cfg.SignPath, publicKey, w.cfg.Principals)
}

func (w *Workflow) fail(ctx context.Context, reason Reason, err error, msg string) error {
	w.state = StateFailed

	log.Errorf("%s: %v", msg, err)
	log.Debugf("%+v", err)

	w.hook(ctx, "failure", w.cfg.OnFailureHook)

	return &FailedError{Reason: reason, Err: err}
}

// hook runs cmd even when ctx is already canceled, a timed out
// sign request must still trigger the failure hook.
func (w *Workflow) hook(ctx context.Context, name, cmd string) {
	if cmd == "" || w.runHook == nil {
		return
	}

	w.runHook(context.WithoutCancel(ctx), name, cmd)
}

// InstallCertificate atomically replaces the certificate at path with signed.
func InstallCertificate(signed *vault.SignedKey, path string) error {
	if signed == nil {
		return errors.New("no signed key to install")
	}

	return utils.AtomicWriteFile(path, signed.Bytes(), constants.PermissionsCertFile)
}
