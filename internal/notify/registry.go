package notify

import (
	"slices"
	"sync"

	"github.com/gosuda/taskboard/internal/messenger"
)

// Registry holds the messengers reminders can be delivered through, keyed by
// the platform each one reports.
type Registry struct {
	mu         sync.RWMutex
	messengers map[string]messenger.Messenger
}

func NewRegistry(ms ...messenger.Messenger) *Registry {
	r := &Registry{messengers: make(map[string]messenger.Messenger, len(ms))}
	for _, m := range ms {
		r.Add(m)
	}
	return r
}

// Add registers m under m.Platform(), replacing any earlier messenger for
// that platform.
func (r *Registry) Add(m messenger.Messenger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messengers[m.Platform()] = m
}

func (r *Registry) Get(platform string) (messenger.Messenger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messengers[platform]
	return m, ok
}

// Platforms lists the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.messengers))
	for p := range r.messengers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
