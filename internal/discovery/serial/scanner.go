// internal/discovery/serial/scanner.go
package serial

import (
	"fmt"
	"path/filepath"
	"sync"

	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// PortLister enumerates the serial ports currently visible to the system
type PortLister interface {
	GetPortsList() ([]string, error)
}

// PortListerFunc adapts a function to the PortLister interface
type PortListerFunc func() ([]string, error)

// GetPortsList calls f
func (f PortListerFunc) GetPortsList() ([]string, error) {
	return f()
}

// SystemPorts lists ports through go.bug.st/serial
var SystemPorts PortLister = PortListerFunc(gobug.GetPortsList)

// detailedPortsList is swapped out in tests
var detailedPortsList = enumerator.GetDetailedPortsList

// PortInfo describes a port with USB metadata when available
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// NewPorts returns the ports in current that are absent from previous,
// in current's enumeration order and without duplicates.
func NewPorts(previous, current []string) []string {
	seen := make(map[string]struct{}, len(previous)+len(current))
	for _, port := range previous {
		seen[port] = struct{}{}
	}

	var added []string
	for _, port := range current {
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		added = append(added, port)
	}
	return added
}

// Scanner tracks port snapshots and reports newly attached ports
type Scanner struct {
	lister   PortLister
	patterns []string
	logger   *zap.Logger

	mutex    sync.Mutex
	previous []string
}

// NewScanner creates a scanner. Patterns are filepath.Match globs; none means every port.
func NewScanner(lister PortLister, patterns []string, logger *zap.Logger) *Scanner {
	if lister == nil {
		lister = SystemPorts
	}
	return &Scanner{
		lister:   lister,
		patterns: patterns,
		logger:   logger.With(zap.String("scanner", "serial")),
	}
}

// List returns the current filtered port snapshot
func (s *Scanner) List() ([]string, error) {
	ports, err := s.lister.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	return s.filter(ports), nil
}

// Prime records the current snapshot so only later arrivals count as new
func (s *Scanner) Prime() error {
	ports, err := s.List()
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.previous = ports
	s.mutex.Unlock()

	s.logger.Debug("Port snapshot primed", zap.Strings("ports", ports))
	return nil
}

// Poll enumerates, diffs against the stored snapshot and stores the new snapshot
func (s *Scanner) Poll() ([]string, error) {
	current, err := s.List()
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	added := NewPorts(s.previous, current)
	s.previous = current
	s.mutex.Unlock()

	if len(added) > 0 {
		s.logger.Info("New serial ports detected", zap.Strings("ports", added))
	}
	return added, nil
}

// Forget drops port from the stored snapshot so the next Poll reports it
// again while it is still attached
func (s *Scanner) Forget(port string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	kept := s.previous[:0:0]
	for _, p := range s.previous {
		if p != port {
			kept = append(kept, p)
		}
	}
	s.previous = kept
}

// Present reports whether port is in a fresh enumeration
func (s *Scanner) Present(port string) (bool, error) {
	ports, err := s.List()
	if err != nil {
		return false, err
	}
	for _, p := range ports {
		if p == port {
			return true, nil
		}
	}
	return false, nil
}

// Details returns the detailed port listing used for diagnostics
func (s *Scanner) Details() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get detailed port list: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if !s.matches(d.Name) {
			continue
		}
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}

func (s *Scanner) filter(ports []string) []string {
	if len(s.patterns) == 0 {
		return ports
	}
	filtered := make([]string, 0, len(ports))
	for _, port := range ports {
		if s.matches(port) {
			filtered = append(filtered, port)
		}
	}
	return filtered
}

func (s *Scanner) matches(port string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, pattern := range s.patterns {
		if ok, err := filepath.Match(pattern, port); err == nil && ok {
			return true
		}
	}
	return false
}
