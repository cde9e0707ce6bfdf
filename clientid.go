package cachepurge

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ClientIDEnv names the variable that pins the device identity.
const ClientIDEnv = "HALFTRIP_CLIENT_ID"

var keyReplacer = strings.NewReplacer(" ", "-", ":", "-", "*", "-", "?", "-", "[", "-", "]", "-")

// ClientKeyPrefix returns the key-value namespace "<app>-<client>:" owned by this device.
// The client part comes from HALFTRIP_CLIENT_ID or, failing that, the hostname. It must
// be the same on every start, or a purge would miss keys written before a restart.
func ClientKeyPrefix(app string) (string, error) {
	client := strings.TrimSpace(os.Getenv(ClientIDEnv))
	if client == "" {
		host, err := os.Hostname()
		if err != nil {
			return "", fmt.Errorf("derive client key prefix: %w", err)
		}
		client = strings.TrimSpace(host)
	}
	if client == "" {
		return "", errors.New("derive client key prefix: no client id or hostname")
	}
	parts := []string{keySegment(client)}
	if app = strings.TrimSpace(app); app != "" {
		parts = append([]string{keySegment(app)}, parts...)
	}
	return strings.Join(parts, "-") + ":", nil
}

// keySegment lowercases s and replaces glob metacharacters and the ':' separator.
func keySegment(s string) string {
	return keyReplacer.Replace(strings.ToLower(s))
}
