package constants

import "time"

const (
	// EnvPrefix is prepended to every flag name to form its environment variable.
	EnvPrefix = "VAULT"

	DefaultVaultAddr       = "http://127.0.0.1:8200"
	DefaultHostKeyPath     = "/etc/ssh/ssh_host_rsa_key.pub"
	DefaultHostCertPath    = "/etc/ssh/ssh_host_rsa_key-cert.pub"
	DefaultThresholdDays   = 7
	DefaultRequestTimeout  = 30 * time.Second
	DefaultDaemonSchedule  = "@every 12h"
	DefaultEnvFile         = ".env"
	DefaultLogLevel        = "info"
	DefaultPrincipalsDelim = ","
)

const (
	// HostCertType is the only certificate type requested from the signing service.
	HostCertType = "host"

	// VaultTokenHeader carries the auth token on signing requests.
	VaultTokenHeader = "X-Vault-Token"

	// VaultNamespaceHeader selects a Vault Enterprise namespace.
	VaultNamespaceHeader = "X-Vault-Namespace"

	VaultAPIPrefix = "v1"
)

const (
	// PermissionsCertFile is the mode of a freshly installed certificate file.
	PermissionsCertFile = 0o644
)

const (
	FormatJSON  = "json"
	FormatPlain = "plain"
)
