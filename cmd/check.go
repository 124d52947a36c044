package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/srl-labs/vault-ssh-renew/cert"
	"github.com/srl-labs/vault-ssh-renew/constants"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
)

// checkResult is the status of the host certificate printed by the check command.
type checkResult struct {
	CertPath     string     `json:"cert_path"`
	Present      bool       `json:"present"`
	Type         string     `json:"type,omitempty"`
	NotBefore    *time.Time `json:"valid_after,omitempty"`
	NotAfter     *time.Time `json:"valid_before,omitempty"`
	NeedsRenewal bool       `json:"needs_renewal"`

	now time.Time
}

func checkCmd(o *Options) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:   "check",
		Short: "print the host certificate validity and whether it needs renewal",
		Long: "check decodes the host certificate and applies the renewal policy without " +
			"contacting Vault. It exits with 0 whether a renewal is needed or not.",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return checkFn(cobraCmd.OutOrStdout(), o, time.Now())
		},
	}

	c.Flags().StringVarP(&o.Check.Format, "format", "f", o.Check.Format,
		"output format; one of [plain, json]")

	return c, nil
}

func checkFn(w io.Writer, o *Options, now time.Time) error {
	keyPath, certPath, err := o.Host.paths()
	if err != nil {
		return err
	}

	h, err := cert.Read(keyPath, certPath)
	if err != nil {
		return err
	}

	res := &checkResult{
		CertPath:     certPath,
		now:          now.UTC(),
		NeedsRenewal: h.CheckRenewal(now.UTC(), o.Host.threshold()).NeedsRenewal(),
	}

	if c := h.Certificate(); c != nil {
		res.Present = true
		res.Type = c.Type
		res.NotBefore = &c.NotBefore
		res.NotAfter = &c.NotAfter
	}

	out, err := res.dump(o.Check.Format)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, out)

	return err
}

func (r *checkResult) dump(format string) (string, error) {
	switch format {
	case constants.FormatJSON:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}

		return string(b), nil
	case constants.FormatPlain:
		var s strings.Builder

		table := tablewriter.NewWriter(&s)
		table.SetHeader([]string{"Certificate", "Type", "Valid After", "Valid Before", "Expires", "Needs Renewal"})
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.Append(r.tableRow())
		table.Render()

		return strings.TrimSuffix(s.String(), "\n"), nil
	}

	return "", errors.Wrapf(renewerrors.ErrIncorrectInput, "unsupported output format %q", format)
}

func (r *checkResult) tableRow() []string {
	if !r.Present {
		return []string{r.CertPath, "none", "-", "-", "-", strconv.FormatBool(r.NeedsRenewal)}
	}

	return []string{
		r.CertPath,
		r.Type,
		r.NotBefore.Format(time.RFC3339),
		r.NotAfter.Format(time.RFC3339),
		humanize.RelTime(*r.NotAfter, r.now, "ago", "from now"),
		strconv.FormatBool(r.NeedsRenewal),
	}
}
