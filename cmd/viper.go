// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/srl-labs/vault-ssh-renew/constants"
)

const rootCmdName = "vault-ssh-renew"

var v *viper.Viper //nolint:gochecknoglobals

// initViper initializes viper for environment variable support.
// Root flags map to VAULT_<FLAG>, so --ssh-sign-path reads VAULT_SSH_SIGN_PATH.
func initViper(cmd *cobra.Command) error {
	v = viper.New()

	v.SetEnvPrefix(constants.EnvPrefix)

	// "daemon.schedule" matches VAULT_DAEMON_SCHEDULE
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// bindFlags binds all cobra flags to viper for a command and its subcommands.
// Local flags of a subcommand are namespaced with the command path.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	return bindFlagsWithPath(cmd, v, "")
}

func bindFlagsWithPath(cmd *cobra.Command, v *viper.Viper, cmdPath string) error {
	currentPath := cmdPath
	isRootCmd := isRoot(cmd)

	if !isRootCmd {
		if currentPath != "" {
			currentPath = currentPath + "." + cmd.Name()
		} else {
			currentPath = cmd.Name()
		}
	}

	var err error

	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if err != nil {
			return
		}

		if isRootCmd {
			err = v.BindPFlag(flag.Name, flag)
			return
		}

		err = v.BindPFlag(currentPath+"."+flag.Name, flag)
	})

	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if err != nil || cmd.PersistentFlags().Lookup(flag.Name) != nil {
			return
		}

		// root local flags would clash with the global names
		if currentPath != "" {
			err = v.BindPFlag(currentPath+"."+flag.Name, flag)
		}
	})

	if err != nil {
		return err
	}

	for _, subCmd := range cmd.Commands() {
		if err := bindFlagsWithPath(subCmd, v, currentPath); err != nil {
			return err
		}
	}

	return nil
}

// updateOptionsFromViper copies environment values onto the flags of cmd
// and its parents that were not set explicitly on the command line.
func updateOptionsFromViper(cmd *cobra.Command, _ *Options) {
	cmdPath := getCommandPath(cmd)

	flagMap := make(map[string]*pflag.Flag)

	addFlags := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if _, exists := flagMap[f.Name]; !exists {
				flagMap[f.Name] = f
			}
		})
	}

	addFlags(cmd.Flags())
	addFlags(cmd.PersistentFlags())

	for parent := cmd.Parent(); parent != nil; parent = parent.Parent() {
		addFlags(parent.PersistentFlags())
	}

	rootKeys := make(map[string]struct{})
	for _, k := range v.AllKeys() {
		rootKeys[k] = struct{}{}
	}

	for _, f := range flagMap {
		updateFlagFromViper(f, cmdPath, rootKeys)
	}
}

// getCommandPath builds the command path from root to current command,
// for example "daemon".
func getCommandPath(cmd *cobra.Command) string {
	var parts []string

	for current := cmd; current != nil && !isRoot(current); current = current.Parent() {
		parts = append([]string{current.Name()}, parts...)
	}

	return strings.Join(parts, ".")
}

func isRoot(cmd *cobra.Command) bool {
	return cmd.Name() == rootCmdName || cmd.Name() == "" || !cmd.HasParent()
}

// updateFlagFromViper sets f from viper when the flag was not given on the
// command line and the environment holds a value for it. The command
// namespaced key is tried first, then the global one.
func updateFlagFromViper(f *pflag.Flag, cmdPath string, rootKeys map[string]struct{}) {
	if f.Changed {
		return
	}

	key := f.Name
	hasValue := false

	if cmdPath != "" {
		key = cmdPath + "." + f.Name
		hasValue = v.IsSet(key)
	}

	if !hasValue {
		if _, ok := rootKeys[f.Name]; ok {
			key = f.Name
			hasValue = v.IsSet(key)
		}
	}

	if !hasValue {
		return
	}

	var val string

	switch f.Value.Type() {
	case "stringSlice":
		// the flag parses a comma separated list
		val = strings.Join(v.GetStringSlice(key), ",")
	default:
		val = v.GetString(key)
	}

	if val != "" {
		_ = f.Value.Set(val)
	}
}
