package scheduler

import (
	"sync"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/logging"

	"github.com/coreos/go-systemd/v22/daemon"
)

// systemdNotifier reports lifecycle to systemd. Outside a systemd unit every call is a no-op.
type systemdNotifier struct {
	logger logging.Logger

	mutex        sync.Mutex
	watchdog     time.Duration
	lastWatchdog time.Time
}

func newSystemdNotifier(logger logging.Logger) *systemdNotifier {
	n := &systemdNotifier{logger: logger}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warnf("Failed to read systemd watchdog settings: %v", err)
	}
	if interval > 0 {
		n.watchdog = interval / 2
		logger.Infof("Systemd watchdog enabled, pinging every %v", n.watchdog)
	}
	return n
}

func (n *systemdNotifier) ready() {
	n.notify(daemon.SdNotifyReady)
}

func (n *systemdNotifier) stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// tick pings the watchdog at most every half of its interval
func (n *systemdNotifier) tick() {
	if n.watchdog == 0 {
		return
	}

	n.mutex.Lock()
	due := time.Since(n.lastWatchdog) >= n.watchdog
	if due {
		n.lastWatchdog = time.Now()
	}
	n.mutex.Unlock()

	if due {
		n.notify(daemon.SdNotifyWatchdog)
	}
}

func (n *systemdNotifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warnf("Systemd notify %q failed: %v", state, err)
		return
	}
	if sent {
		n.logger.Debugf("Systemd notified: %s", state)
	}
}
