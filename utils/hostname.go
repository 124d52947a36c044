package utils

import (
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FQDN returns the fully qualified name of this host, falling back to the
// short hostname when no canonical name can be resolved.
func FQDN() string {
	host, err := os.Hostname()
	if err != nil {
		log.Warnf("failed to get hostname: %v", err)
		return "localhost"
	}

	cname, err := net.LookupCNAME(host)
	if err != nil || cname == "" {
		return host
	}

	return strings.TrimSuffix(cname, ".")
}
