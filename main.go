// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"os"

	"github.com/srl-labs/vault-ssh-renew/cmd"
)

func main() {
	ctx, cancel := cmd.SignalHandledContext()

	rootCmd, err := cmd.Entrypoint()
	if err == nil {
		err = rootCmd.ExecuteContext(ctx)
	}

	// ensure cancel is *always* called (os.Exit bypasses)
	cancel()

	if err != nil {
		cmd.LogError(err)
		os.Exit(1)
	}
}
