package lttbplot

import (
	"os/exec"
	"runtime"

	"github.com/sirupsen/logrus"
)

// OpenBrowser opens url with the desktop's default browser. Failing to do so
// is not fatal, the url is logged instead.
func OpenBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	err := exec.Command(cmd, args...).Start()
	if err != nil {
		logrus.WithField("url", url).Warn("failed to start web browser automatically")
	}
}
