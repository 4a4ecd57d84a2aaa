package github

import (
	"os/exec"
	"strings"
)

// ResolveToken returns the configured token when set, falling back to the
// gh CLI's stored credentials. An empty result means checks run
// anonymously, which is fine for public repositories.
func ResolveToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		// gh missing or not logged in
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}
