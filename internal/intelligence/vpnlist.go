package intelligence

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"geowarden/internal/metrics"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// VPNList is an operator-maintained set of VPN/proxy exit addresses and prefixes.
// The file holds one IP or CIDR per line; blank lines and text after '#' are ignored.
type VPNList struct {
	path   string
	logger *pterm.Logger

	mu       sync.RWMutex
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewVPNList loads the list at path. The file must exist at startup.
func NewVPNList(path string, logger *pterm.Logger) (*VPNList, error) {
	l := &VPNList{
		path:   path,
		logger: logger,
		addrs:  make(map[netip.Addr]struct{}),
		stopCh: make(chan struct{}),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Contains reports whether ip is listed directly or falls inside a listed prefix.
func (l *VPNList) Contains(ip string) bool {
	if l == nil {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.addrs[addr]; ok {
		return true
	}
	for _, prefix := range l.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of loaded entries.
func (l *VPNList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addrs) + len(l.prefixes)
}

// Reload re-reads the file and swaps the entries in one step.
func (l *VPNList) Reload() error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open vpn list: %w", err)
	}
	defer file.Close()

	addrs, prefixes, skipped, err := parseVPNList(file)
	if err != nil {
		return fmt.Errorf("failed to read vpn list: %w", err)
	}

	l.mu.Lock()
	l.addrs = addrs
	l.prefixes = prefixes
	l.mu.Unlock()

	metrics.VPNListEntries.Set(float64(len(addrs) + len(prefixes)))
	l.logger.Info("Loaded VPN list",
		l.logger.Args("path", l.path, "addresses", len(addrs), "prefixes", len(prefixes), "skipped", skipped))
	return nil
}

func parseVPNList(r io.Reader) (map[netip.Addr]struct{}, []netip.Prefix, int, error) {
	addrs := make(map[netip.Addr]struct{})
	var prefixes []netip.Prefix
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, "/") {
			prefix, err := netip.ParsePrefix(line)
			if err != nil {
				skipped++
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(line)
		if err != nil {
			skipped++
			continue
		}
		addrs[addr.Unmap()] = struct{}{}
	}
	return addrs, prefixes, skipped, scanner.Err()
}

// Watch reloads the list whenever the file is written or replaced.
// The parent directory is watched so editors that write via rename are picked up.
func (l *VPNList) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.WithCaller().Error("Failed to create file watcher", l.logger.Args("error", err))
		return err
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch vpn list directory: %w", err)
	}

	l.watcher = watcher
	l.wg.Add(1)
	go l.eventLoop()

	l.logger.Debug("Watching VPN list for changes", l.logger.Args("path", l.path))
	return nil
}

func (l *VPNList) eventLoop() {
	defer l.wg.Done()

	target := filepath.Clean(l.path)
	for {
		select {
		case <-l.stopCh:
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				l.logger.Warn("VPN list watcher events channel closed")
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if err := l.Reload(); err != nil {
					l.logger.Warn("Failed to reload VPN list, keeping previous entries", l.logger.Args("error", err))
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				l.logger.Debug("VPN list removed or renamed, keeping previous entries", l.logger.Args("path", event.Name))
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.WithCaller().Error("VPN list watcher error", l.logger.Args("error", err))
		}
	}
}

// Close stops watching. Entries stay usable.
func (l *VPNList) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.stopCh)
	err := l.watcher.Close()
	l.wg.Wait()
	l.watcher = nil
	return err
}
