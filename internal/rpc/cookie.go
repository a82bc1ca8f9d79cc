package rpc

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LoadAuthCookie reads the node's auth cookie from dataDir, retrying
// briefly while the node is still writing it during its own startup.
// It returns the "user:pass" pair split on the first colon, matching
// the node's ".cookie" format.
func LoadAuthCookie(dataDir string, attempts int, wait time.Duration) (user, pass string, err error) {
	if attempts <= 0 {
		attempts = 10
	}
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	var data []byte
	for i := 0; i < attempts; i++ {
		data, err = os.ReadFile(dataDir + "/.cookie")
		if err == nil {
			break
		}
		time.Sleep(wait)
	}
	if err != nil {
		return "", "", fmt.Errorf("auth cookie not found under %s after %d attempts: %w", dataDir, attempts, err)
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed auth cookie under %s", dataDir)
	}
	return parts[0], parts[1], nil
}
