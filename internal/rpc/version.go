package rpc

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// DaemonVersion is the running daemon's version string, set by
// internal/daemonrunner from the build version cmd/webmond passes it, before
// the server starts.
var DaemonVersion = "0.0.0"

// checkVersionCompatibility rejects a client whose major version doesn't
// match the daemon's. Client versions that don't parse as semver (dev
// builds, empty string) are let through.
func checkVersionCompatibility(clientVersion string) error {
	if clientVersion == "" {
		return nil
	}

	daemonVer := normalizeSemver(DaemonVersion)
	clientVer := normalizeSemver(clientVersion)
	if !semver.IsValid(daemonVer) || !semver.IsValid(clientVer) {
		return nil
	}

	if semver.Major(daemonVer) != semver.Major(clientVer) {
		return fmt.Errorf("incompatible major versions: client %s, daemon %s", clientVersion, DaemonVersion)
	}
	return nil
}

func normalizeSemver(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
