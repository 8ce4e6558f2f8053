package rules

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch marks the provider dirty whenever the rules file content changes.
// It watches the parent directory so editors that replace the file are seen too,
// and recreates the watcher if it breaks. Returns nil when ctx is done.
func (p *FileProvider) Watch(ctx context.Context) error {
	dir := filepath.Dir(p.path)
	file := filepath.Base(p.path)

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextBackoff := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}

	var (
		timerMutex sync.Mutex
		timer      *time.Timer
	)
	debounce := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, p.checkContent)
	}
	defer func() {
		timerMutex.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMutex.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		watcher, err := fsnotify.NewWatcher()
		if err == nil {
			if err = watcher.Add(dir); err != nil {
				_ = watcher.Close()
			}
		}
		if err != nil {
			p.logger.Warnf("Rules watch on %s failed: %v", dir, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextBackoff()):
				continue
			}
		}

		backoff = restartBackoffBase
		p.logger.Debugf("Watching rules file %s", p.path)

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = watcher.Close()
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(event.Name), file) &&
					event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					broken = true
					break
				}
				if err == fsnotify.ErrEventOverflow {
					p.logger.Warnf("Rules watch overflow, rechecking %s", p.path)
					debounce()
					continue
				}
				p.logger.Warnf("Rules watch error: %v", err)
			}
		}

		_ = watcher.Close()
		wait := nextBackoff()
		p.logger.Warnf("Rules watcher stopped, restarting in %v", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// checkContent marks the provider dirty if the file differs from what was last loaded or seen
func (p *FileProvider) checkContent() {
	data, err := os.ReadFile(p.path)
	if err != nil {
		// Mid-replace; the Create event that follows triggers another check
		p.logger.Debugf("Rules file %s unreadable: %v", p.path, err)
		return
	}

	hash := hashContent(data)
	p.mutex.Lock()
	unchanged := hash == p.lastHash
	p.lastHash = hash
	p.mutex.Unlock()

	if unchanged {
		p.logger.Debugf("Rules file %s unchanged", p.path)
		return
	}
	p.logger.Infof("Rules file %s changed", p.path)
	p.dirty.Store(true)
}
