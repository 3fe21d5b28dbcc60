package callback

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser launches the user's browser at the given URL. The command is
// started detached so the login flow never blocks on the browser process.
func OpenBrowser(url string) error {
	name, args := browserCommand(runtime.GOOS)
	if name == "" {
		return fmt.Errorf("no known browser launcher for %s", runtime.GOOS)
	}

	if err := exec.Command(name, append(args, url)...).Start(); err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	return nil
}

// browserCommand maps a platform to its URL opener.
func browserCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "cmd", []string{"/c", "start"}
	case "linux":
		return "xdg-open", nil
	}
	return "", nil
}
