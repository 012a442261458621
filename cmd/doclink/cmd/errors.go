package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/config"
)

// errDaemonNotRunning is returned by commands that need the daemon.
var errDaemonNotRunning = errors.WithHint(
	errors.New("daemon not running"),
	"start it with: doclink daemon start")

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// diagnoseDBLock checks the daemon state and returns actionable guidance
// when a bbolt open fails due to lock contention. It distinguishes three
// scenarios: daemon running, stale socket, and unknown lock holder.
func diagnoseDBLock(root string) string {
	sockPath := socket.SocketPath(root)
	client := socket.NewClient(sockPath)

	if client.Ping() {
		return "database is locked by the running daemon\n" +
			"  → use the daemon (it serves this command), or stop it:  doclink daemon stop\n" +
			"  → then retry your command"
	}

	if _, err := os.Stat(sockPath); err == nil {
		return fmt.Sprintf("database is locked — daemon socket exists but is not responding\n"+
			"  → a previous daemon may have crashed\n"+
			"  → find the process:  ps aux | grep 'doclink daemon'\n"+
			"  → kill it:           kill <PID>\n"+
			"  → clean up socket:   rm %s", sockPath)
	}

	return "database is locked by another process\n" +
		"  → find the process:  ps aux | grep 'doclink'\n" +
		"  → kill it:           kill <PID>\n" +
		"  → then retry your command"
}

// openOffline builds a one-shot app over the configured store for commands
// that run without the daemon. Lock contention is diagnosed.
func openOffline(root string, cfg *config.Config) (*app.App, error) {
	a, err := app.New(app.Config{ProjectRoot: root, Settings: cfg, OneShot: true})
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("cannot open store: %s", diagnoseDBLock(root))
		}
		return nil, err
	}
	return a, nil
}
