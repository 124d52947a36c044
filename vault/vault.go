// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package vault talks to the SSH secrets engine of a HashiCorp Vault server.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/srl-labs/vault-ssh-renew/constants"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// Client signs host keys. It performs exactly one request per SignHostKey call
// and never retries.
type Client struct {
	addr       string
	token      string
	namespace  string
	userAgent  string
	httpClient *http.Client
}

type ClientOption func(c *Client) error

// WithHTTPClient sets the http client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}

		c.httpClient = hc

		return nil
	}
}

// WithNamespace sends requests to a Vault Enterprise namespace.
func WithNamespace(ns string) ClientOption {
	return func(c *Client) error {
		c.namespace = strings.Trim(ns, "/")
		return nil
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// NewClient returns a client for the Vault server at addr authenticating with token.
func NewClient(addr, token string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(addr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(renewerrors.ErrIncorrectInput, "invalid vault address %q", addr)
	}

	if strings.TrimSpace(token) == "" {
		return nil, errors.Wrap(renewerrors.ErrIncorrectInput, "vault token is not set")
	}

	c := &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      strings.TrimSpace(token),
		userAgent:  "vault-ssh-renew",
		httpClient: &http.Client{},
	}

	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SignURL returns the endpoint that sign requests for signPath are posted to.
func (c *Client) SignURL(signPath string) string {
	return fmt.Sprintf("%s/%s/%s", c.addr, constants.VaultAPIPrefix, strings.TrimLeft(signPath, "/"))
}

// SignHostKey asks Vault to sign publicKey as a host certificate valid for principals.
// The public key is sent exactly as given. Principals are joined with commas.
func (c *Client) SignHostKey(ctx context.Context, signPath, publicKey string,
	principals []string,
) (*SignedKey, error) {
	req := &SignRequest{
		CertType:        constants.HostCertType,
		PublicKey:       publicKey,
		ValidPrincipals: strings.Join(principals, constants.DefaultPrincipalsDelim),
	}

	resp := &signResponse{}

	if err := c.request(ctx, http.MethodPost, c.SignURL(signPath), req, resp); err != nil {
		return nil, err
	}

	if resp.Data == nil || resp.Data.SignedKey == "" {
		return nil, errors.WithStack(&renewerrors.SigningError{
			StatusCode: http.StatusOK,
			Body:       "response carries no signed key",
		})
	}

	return &SignedKey{key: resp.Data.SignedKey, serial: resp.Data.SerialNumber}, nil
}

// request sends data as JSON and decodes a 200 response into target.
// Any other outcome is a SigningError holding the raw response body.
func (c *Client) request(ctx context.Context, method, u string, data, target any) error {
	jv, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(jv))
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	req.Header.Set(constants.VaultTokenHeader, c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.namespace != "" {
		req.Header.Set(constants.VaultNamespaceHeader, c.namespace)
	}

	log.Debugf("sending %s %s", method, u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(&renewerrors.SigningError{Err: err})
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.WithStack(&renewerrors.SigningError{StatusCode: resp.StatusCode, Err: err})
	}

	log.Debugf("vault replied with status %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return errors.WithStack(&renewerrors.SigningError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WithStack(&renewerrors.SigningError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("decoding response: %w", err),
		})
	}

	return nil
}
