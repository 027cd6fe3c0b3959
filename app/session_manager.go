package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/internal/validation"
	"statwizard/internal/wizard"
	"statwizard/ports"
)

// ObserverFactory returns the observers attached to wizards of a browser session.
type ObserverFactory func(sessionID core.SessionID, analysisID core.AnalysisID) []wizard.Observer

// ManagerConfig wires the dependencies shared by all sessions.
type ManagerConfig struct {
	Catalog     *analysis.Catalog
	Policy      *validation.Policy
	Client      wizard.Client
	Runs        ports.RunRepository // optional
	Observers   ObserverFactory     // optional
	IdleTimeout time.Duration
}

// Workspace is the host page of one browser session: a single dataset shared
// by one wizard per analysis. Loading a dataset resets all of them.
type Workspace struct {
	id core.SessionID
	m  *SessionManager

	mu       sync.Mutex
	ds       *dataset.Dataset
	sessions map[core.AnalysisID]*AnalysisSession
	lastUsed time.Time
}

// ID returns the browser session id.
func (w *Workspace) ID() core.SessionID { return w.id }

// Dataset returns the loaded dataset, or nil.
func (w *Workspace) Dataset() *dataset.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ds
}

// LoadDataset replaces the dataset and resets every wizard of the workspace.
func (w *Workspace) LoadDataset(ds *dataset.Dataset) error {
	if ds == nil || ds.RowCount() == 0 {
		return core.ErrEmptyDataset
	}
	w.mu.Lock()
	w.ds = ds
	w.lastUsed = w.m.now()
	sessions := w.sessionsLocked()
	w.mu.Unlock()

	for _, s := range sessions {
		if err := s.LoadDataset(ds); err != nil {
			return err
		}
	}
	log.Printf("[Workspace] %s loaded %q (%d rows, %d wizards reset)", core.ID(w.id).Short(), ds.Name, ds.RowCount(), len(sessions))
	return nil
}

// Session returns the wizard for an analysis, mounting it on first use.
func (w *Workspace) Session(id core.AnalysisID) (*AnalysisSession, error) {
	def, err := w.m.cfg.Catalog.Get(id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastUsed = w.m.now()
	if s, ok := w.sessions[id]; ok {
		return s, nil
	}
	if w.ds == nil {
		return nil, core.ErrNoDataset
	}

	var observers []wizard.Observer
	if w.m.cfg.Observers != nil {
		observers = w.m.cfg.Observers(w.id, id)
	}
	client := w.m.cfg.Client
	if w.m.cfg.Runs != nil {
		client = &recordingClient{inner: client, repo: w.m.cfg.Runs, sessionID: w.id, dataset: w.datasetRef}
	}
	s, err := NewAnalysisSession(w.id, def, w.m.cfg.Policy, client, w.ds, observers...)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", id, err)
	}
	w.sessions[id] = s
	return s, nil
}

// Sessions lists the mounted wizards ordered by analysis id.
func (w *Workspace) Sessions() []*AnalysisSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionsLocked()
}

func (w *Workspace) sessionsLocked() []*AnalysisSession {
	out := make([]*AnalysisSession, 0, len(w.sessions))
	for _, s := range w.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].def.ID < out[j].def.ID })
	return out
}

func (w *Workspace) datasetRef() (core.DatasetID, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ds == nil {
		return "", ""
	}
	return w.ds.ID, w.ds.Name
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	last := w.lastUsed
	sessions := w.sessionsLocked()
	w.mu.Unlock()
	for _, s := range sessions {
		if t := s.LastUsed(); t.After(last) {
			last = t
		}
	}
	return last
}

func (w *Workspace) close() {
	for _, s := range w.Sessions() {
		s.Close()
	}
}

// SessionManager owns the workspaces of all browser sessions and evicts the
// idle ones.
type SessionManager struct {
	cfg ManagerConfig
	now func() time.Time

	mu         sync.Mutex
	workspaces map[core.SessionID]*Workspace
}

// NewSessionManager validates the wiring and creates an empty manager.
func NewSessionManager(cfg ManagerConfig) (*SessionManager, error) {
	if cfg.Catalog == nil || cfg.Client == nil {
		return nil, fmt.Errorf("session manager needs a catalog and a client")
	}
	if cfg.Policy == nil {
		cfg.Policy = validation.DefaultPolicy()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &SessionManager{cfg: cfg, now: time.Now, workspaces: make(map[core.SessionID]*Workspace)}, nil
}

// Catalog returns the analysis catalog.
func (m *SessionManager) Catalog() *analysis.Catalog { return m.cfg.Catalog }

// Workspace returns the workspace of a browser session, creating it if needed.
func (m *SessionManager) Workspace(id core.SessionID) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		w = &Workspace{id: id, m: m, sessions: make(map[core.AnalysisID]*AnalysisSession), lastUsed: m.now()}
		m.workspaces[id] = w
	}
	return w
}

// Lookup returns an existing workspace.
func (m *SessionManager) Lookup(id core.SessionID) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return w, nil
}

// Remove destroys a workspace, cancelling outstanding calls.
func (m *SessionManager) Remove(id core.SessionID) {
	m.mu.Lock()
	w, ok := m.workspaces[id]
	delete(m.workspaces, id)
	m.mu.Unlock()
	if ok {
		w.close()
	}
}

// Count returns the number of live workspaces.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep evicts workspaces idle longer than the timeout and returns how many.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var stale []*Workspace
	for id, w := range m.workspaces {
		if w.idleSince().Before(cutoff) {
			stale = append(stale, w)
			delete(m.workspaces, id)
		}
	}
	m.mu.Unlock()

	for _, w := range stale {
		w.close()
	}
	if len(stale) > 0 {
		log.Printf("[SessionManager] evicted %d idle sessions", len(stale))
	}
	return len(stale)
}

// Start sweeps on an interval until ctx is done.
func (m *SessionManager) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
