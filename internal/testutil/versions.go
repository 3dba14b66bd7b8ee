package testutil

import (
	"fmt"
	"sync"
)

// VersionSequence hands out increasing version strings, "<prefix>.1",
// "<prefix>.2", and so on. Used to register many distinct manifests of one
// package without spelling out every version.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type VersionSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewVersionSequence creates a sequence. An empty prefix means "1.0".
func NewVersionSequence(prefix string) *VersionSequence {
	if prefix == "" {
		prefix = "1.0"
	}
	return &VersionSequence{prefix: prefix}
}

// Next returns the next version.
func (s *VersionSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s.%d", s.prefix, s.seq)
}

// Reset restarts the sequence. The next call to Next() returns "<prefix>.1".
func (s *VersionSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
