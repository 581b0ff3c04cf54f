// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe store of the effective settings a relay process runs with.
// Written once at startup, read by the heartbeat and debug dumps.

package control

import (
	"sort"
	"sync"
)

// ConfigStore is a key/value map with copy-on-read snapshots.
type ConfigStore struct {
	mu     sync.RWMutex
	config map[string]any
}

// NewConfigStore initializes an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{config: make(map[string]any)}
}

// SetConfig merges values into the store.
func (cs *ConfigStore) SetConfig(values map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range values {
		cs.config[k] = v
	}
}

// Get returns the value at key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// Keys returns the stored keys in sorted order.
func (cs *ConfigStore) Keys() []string {
	cs.mu.RLock()
	keys := make([]string, 0, len(cs.config))
	for k := range cs.config {
		keys = append(keys, k)
	}
	cs.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// GetSnapshot returns a copy of all values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}
