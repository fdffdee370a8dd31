package widget

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/service/visibility"
	"github.com/nilebyte/site/backend/internal/storage"
)

// ManagerOptions carries the dependencies shared by every mounted widget.
type ManagerOptions struct {
	Store      storage.Store
	Backend    Backend
	Profile    assistant.Profile
	OpenDelay  time.Duration
	CloseDelay time.Duration
	Clock      visibility.Clock
	Events     events.Publisher
}

// Manager keeps one widget per browser tab. Each tab gets its own storage
// scope, which stands in for per-tab session storage.
type Manager struct {
	opts ManagerOptions

	mu      sync.RWMutex
	widgets map[string]*Widget
}

// NewManager 创建 widget 注册表。
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:    opts,
		widgets: make(map[string]*Widget),
	}
}

// Profile returns the assistant profile shared by all widgets.
func (m *Manager) Profile() assistant.Profile { return m.opts.Profile }

// Mount returns the widget for tabID, mounting it when needed. An empty
// tabID allocates a new tab. Re-mounting a known tab restores its persisted
// log under a fresh session id.
func (m *Manager) Mount(ctx context.Context, tabID string) *Widget {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		tabID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.widgets[tabID]; ok {
		return w
	}

	w := New(ctx, Options{
		ID:         tabID,
		Store:      storage.Scoped(m.opts.Store, tabID),
		Backend:    m.opts.Backend,
		Profile:    m.opts.Profile,
		OpenDelay:  m.opts.OpenDelay,
		CloseDelay: m.opts.CloseDelay,
		Clock:      m.opts.Clock,
		Events:     m.opts.Events,
	})
	m.widgets[tabID] = w

	logger.InfoCF("widget", "widget mounted", map[string]interface{}{
		"widget":   tabID,
		"session":  w.SessionID(),
		"messages": len(w.Messages()),
	})
	return w
}

// Get returns a mounted widget.
func (m *Manager) Get(tabID string) (*Widget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.widgets[tabID]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	return w, nil
}

// Unmount tears the widget down and forgets it.
func (m *Manager) Unmount(ctx context.Context, tabID string) error {
	m.mu.Lock()
	w, ok := m.widgets[tabID]
	delete(m.widgets, tabID)
	m.mu.Unlock()

	if !ok {
		return ErrWidgetNotFound
	}

	w.Teardown(ctx)
	logger.InfoCF("widget", "widget unmounted", map[string]interface{}{"widget": tabID})
	return nil
}

// IDs lists the mounted tabs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.widgets))
	for id := range m.widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close detaches every widget. Persisted logs are kept so tabs can be
// remounted after a restart.
func (m *Manager) Close() {
	m.mu.Lock()
	widgets := m.widgets
	m.widgets = make(map[string]*Widget)
	m.mu.Unlock()

	for _, w := range widgets {
		w.Detach()
		w.Wait()
	}
}
