package cmd

import (
	"github.com/spf13/cobra"
)

func renewCmd(o *Options) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:   "renew",
		Short: "renew the host certificate when it is about to expire",
		Long: "renew checks the host certificate and asks Vault for a new one when it is missing, " +
			"not yet valid or expires within the renew threshold.\n" +
			"The failure hook runs and the command exits with 1 when any step fails.",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return renewFn(cobraCmd, o)
		},
	}

	return c, nil
}

func renewFn(cobraCmd *cobra.Command, o *Options) error {
	w, err := o.ToWorkflow()
	if err != nil {
		return err
	}

	return w.Run(cobraCmd.Context())
}
