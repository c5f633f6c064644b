package preview

import (
	"container/list"
	"sync"

	"github.com/Skryldev/imageprep/core"
)

// DefaultCapacity bounds a Manager created with capacity 0.
const DefaultCapacity = 50

type entry struct {
	key    core.FileKey
	handle *Handle
}

// Manager is a bounded registry of preview handles keyed by file identity
// (name, size, last modified).  When full it revokes the oldest-inserted
// handle.  Handles revoked elsewhere (caller or auto-revoke timer) drop out
// of the registry, so ActiveCount counts live handles only.
type Manager struct {
	store      *ObjectStore
	capacity   int
	handleOpts []Option
	logger     core.Logger

	mu      sync.Mutex
	order   *list.List // of *entry, oldest first
	entries map[core.FileKey]*list.Element
}

// NewManager returns a Manager creating handles in store with handleOpts.
func NewManager(store *ObjectStore, capacity int, handleOpts ...Option) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		store:      store,
		capacity:   capacity,
		handleOpts: handleOpts,
		logger:     core.NopLogger{},
		order:      list.New(),
		entries:    make(map[core.FileKey]*list.Element),
	}
}

// SetLogger attaches a structured logger.
func (m *Manager) SetLogger(l core.Logger) { m.logger = l }

// Store returns the object store backing the manager's handles.
func (m *Manager) Store() *ObjectStore { return m.store }

// Get returns the live handle for file, creating one when none exists.
func (m *Manager) Get(file *core.SourceFile) *Handle {
	key := file.Key()
	var victims []*Handle

	m.mu.Lock()
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*entry)
		if !e.handle.IsRevoked() {
			m.mu.Unlock()
			return e.handle
		}
		m.removeLocked(el)
	}
	for m.order.Len() >= m.capacity {
		oldest := m.order.Front()
		victims = append(victims, oldest.Value.(*entry).handle)
		m.removeLocked(oldest)
	}

	opts := append(append([]Option(nil), m.handleOpts...), withOnRevoke(func(h *Handle) { m.forget(key, h) }))
	h := New(m.store, file, opts...)
	m.entries[key] = m.order.PushBack(&entry{key: key, handle: h})
	m.mu.Unlock()

	for _, v := range victims {
		m.logger.Debug("preview.evicted", "url", v.URL())
		v.Revoke()
	}
	return h
}

// Remove revokes and forgets the handle for file, if any.
func (m *Manager) Remove(file *core.SourceFile) {
	m.mu.Lock()
	el, ok := m.entries[file.Key()]
	if ok {
		m.removeLocked(el)
	}
	m.mu.Unlock()

	if ok {
		el.Value.(*entry).handle.Revoke()
	}
}

// Cleanup revokes every handle.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	handles := make([]*Handle, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		handles = append(handles, el.Value.(*entry).handle)
	}
	m.order.Init()
	m.entries = make(map[core.FileKey]*list.Element)
	m.mu.Unlock()

	for _, h := range handles {
		h.Revoke()
	}
	m.logger.Debug("preview.cleanup", "revoked", len(handles))
}

// ActiveCount returns the number of registered handles.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// forget drops key when it still maps to h.
func (m *Manager) forget(key core.FileKey, h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok && el.Value.(*entry).handle == h {
		m.removeLocked(el)
	}
}

func (m *Manager) removeLocked(el *list.Element) {
	m.order.Remove(el)
	delete(m.entries, el.Value.(*entry).key)
}
