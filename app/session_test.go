package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"statwizard/adapters/statsapi"
	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/internal/validation"
	"statwizard/internal/wizard"
	"statwizard/models"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.AnalysisRun), args.Error(1)
}

func (m *MockRunRepository) ListSessionRuns(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRun, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]*models.AnalysisRun), args.Error(1)
}

func (m *MockRunRepository) StatsBySession(ctx context.Context, sessionID string) ([]models.RunStats, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]models.RunStats), args.Error(1)
}

func (m *MockRunRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// statsServer answers every path with the handler's status and body.
type statsServer struct {
	mu      sync.Mutex
	status  int
	body    string
	block   chan struct{}
	started chan struct{}
	paths   []string
}

func (s *statsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	status, body, block, started := s.status, s.body, s.block, s.started
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newStatsClient(t *testing.T, s *statsServer) *statsapi.Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	c, err := statsapi.NewClient(statsapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func numericDataset(t *testing.T, name string, rows int, cols ...string) *dataset.Dataset {
	t.Helper()
	data := make([]dataset.Row, rows)
	for i := range data {
		row := dataset.Row{}
		for j, c := range cols {
			row[c] = fmt.Sprint((i*(j+3))%23 + j)
		}
		data[i] = row
	}
	ds, err := dataset.New(name, dataset.SourceUpload, cols, data)
	require.NoError(t, err)
	return ds
}

func newRegressionSession(t *testing.T, client wizard.Client, ds *dataset.Dataset) *AnalysisSession {
	t.Helper()
	def, err := analysis.DefaultCatalog().Get(analysis.LinearRegression)
	require.NoError(t, err)
	s, err := NewAnalysisSession(core.NewSessionID(), def, validation.DefaultPolicy(), client, ds)
	require.NoError(t, err)
	return s
}

const regressionBody = `{"results":{"coefficients":[{"term":"(Intercept)","estimate":1.2},{"term":"b","estimate":0.4,"p_value":0.01}],"r_squared":0.64,"n":40},"interpretation":"Moderate fit."}`

func TestSessionDefaultsAndChecks(t *testing.T) {
	s := newRegressionSession(t, &statsapi.Client{}, numericDataset(t, "d", 40, "a", "b", "c", "d", "e"))
	sel := s.Selections()
	assert.Equal(t, "a", sel.Get("dependent"))
	assert.Equal(t, []string{"b"}, sel.All("independents"))
	assert.False(t, analysis.HasBlocking(s.Checks()))
	assert.Equal(t, []string{"b", "c", "d", "e"}, s.Candidates("independents"))
}

func TestSessionMissingSelectionBlocksRun(t *testing.T) {
	server := &statsServer{status: 200, body: regressionBody}
	s := newRegressionSession(t, newStatsClient(t, server), numericDataset(t, "d", 40, "a", "b", "c", "d", "e"))
	require.NoError(t, s.Select("dependent"))

	var found bool
	for _, c := range s.Checks() {
		if c.ID == "required:dependent" {
			found = true
			assert.False(t, c.Passed)
			assert.Equal(t, analysis.SeverityCritical, c.Severity)
		}
	}
	require.True(t, found)

	for i := 0; i < 2; i++ {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}
	st, err := s.Next(context.Background())
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)
	assert.Equal(t, 3, st.CurrentStep)
	assert.Empty(t, server.paths)
}

func TestSessionRunSuccess(t *testing.T) {
	server := &statsServer{status: 200, body: regressionBody}
	s := newRegressionSession(t, newStatsClient(t, server), numericDataset(t, "d", 40, "a", "b"))
	require.NoError(t, s.Select("independents", "b"))

	_, _ = s.Next(context.Background())
	_, _ = s.Next(context.Background())
	st, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, st.CurrentStep)
	require.NotNil(t, st.LastResult)
	assert.JSONEq(t, `{"coefficients":[{"term":"(Intercept)","estimate":1.2},{"term":"b","estimate":0.4,"p_value":0.01}],"r_squared":0.64,"n":40}`, string(st.LastResult.Results))
	assert.Equal(t, []string{"Moderate fit."}, st.LastResult.Interpretation)
	assert.Equal(t, []string{"/api/regression/linear"}, server.paths)

	view := s.View()
	assert.Equal(t, wizard.PhaseResults, view.Phase)
	assert.Same(t, st.LastResult, view.Result)
	assert.Equal(t, "Summary", view.StepLabel)
}

func TestSessionUpstreamError(t *testing.T) {
	server := &statsServer{status: 500, body: `{"error":"invalid data"}`}
	s := newRegressionSession(t, newStatsClient(t, server), numericDataset(t, "d", 40, "a", "b"))
	_, _ = s.GoTo(1)
	_, _ = s.Next(context.Background())
	_, _ = s.Next(context.Background())

	st, err := s.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, "invalid data", st.LastError)
	assert.Equal(t, 3, st.CurrentStep)
	assert.Nil(t, st.LastResult)
	assert.Equal(t, wizard.PhaseFailed, s.View().Phase)

	server.mu.Lock()
	server.status, server.body = 200, regressionBody
	server.mu.Unlock()
	st, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 4, st.CurrentStep)
}

func TestSelectionChangeClearsResult(t *testing.T) {
	server := &statsServer{status: 200, body: regressionBody}
	s := newRegressionSession(t, newStatsClient(t, server), numericDataset(t, "d", 40, "a", "b", "c"))
	for s.Controller().State().CurrentStep < 4 {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}
	require.NotNil(t, s.Controller().State().LastResult)

	require.NoError(t, s.Select("independents", "b"))
	assert.NotNil(t, s.Controller().State().LastResult, "same value is a no-op")

	require.NoError(t, s.Select("independents", "b", "c"))
	st := s.Controller().State()
	assert.Nil(t, st.LastResult)
	assert.Equal(t, 4, st.CurrentStep)
	assert.Nil(t, s.View().Result)

	assert.Error(t, s.Select("nope", "x"))
}

func TestDatasetSwapDuringRunDiscardsResponse(t *testing.T) {
	server := &statsServer{status: 200, body: regressionBody, block: make(chan struct{}), started: make(chan struct{}, 1)}
	defer close(server.block)

	repo := &MockRunRepository{}
	repo.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *models.AnalysisRun) bool {
		return r.Status == models.RunDiscarded && r.AnalysisID == analysis.LinearRegression
	})).Return(nil).Once()

	m, err := NewSessionManager(ManagerConfig{
		Catalog: analysis.DefaultCatalog(),
		Client:  newStatsClient(t, server),
		Runs:    repo,
	})
	require.NoError(t, err)
	ws := m.Workspace(core.NewSessionID())
	require.NoError(t, ws.LoadDataset(numericDataset(t, "first", 40, "a", "b")))
	s, err := ws.Session(analysis.LinearRegression)
	require.NoError(t, err)
	_, _ = s.Next(context.Background())
	_, _ = s.Next(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		done <- err
	}()
	<-server.started

	second := numericDataset(t, "second", 50, "x", "y", "z")
	require.NoError(t, ws.LoadDataset(second))

	assert.ErrorIs(t, <-done, wizard.ErrStaleRun)
	st := s.Controller().State()
	assert.Nil(t, st.LastResult)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, st.CurrentStep)
	assert.Equal(t, 1, st.MaxReachedStep)
	assert.Equal(t, second.ID, st.DatasetID)
	assert.Equal(t, "x", s.Selections().Get("dependent"))
	repo.AssertExpectations(t)
}

func TestRunsAreRecorded(t *testing.T) {
	server := &statsServer{status: 500, body: `{"detail":"singular matrix"}`}
	repo := &MockRunRepository{}
	repo.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *models.AnalysisRun) bool {
		return r.Status == models.RunFailed && r.Error == "singular matrix" && r.ErrorCode == "UPSTREAM_ERROR" && r.Request != ""
	})).Return(nil).Once()
	repo.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *models.AnalysisRun) bool {
		return r.Status == models.RunSucceeded && r.Results != "" && r.DatasetName == "d"
	})).Return(fmt.Errorf("disk full")).Once()

	m, err := NewSessionManager(ManagerConfig{Catalog: analysis.DefaultCatalog(), Client: newStatsClient(t, server), Runs: repo})
	require.NoError(t, err)
	ws := m.Workspace(core.NewSessionID())
	require.NoError(t, ws.LoadDataset(numericDataset(t, "d", 40, "a", "b")))
	s, err := ws.Session(analysis.LinearRegression)
	require.NoError(t, err)
	_, _ = s.Next(context.Background())
	_, _ = s.Next(context.Background())

	_, err = s.Run(context.Background())
	require.Error(t, err)

	server.mu.Lock()
	server.status, server.body = 200, regressionBody
	server.mu.Unlock()
	st, err := s.Run(context.Background())
	require.NoError(t, err, "history failures do not fail the run")
	assert.NotNil(t, st.LastResult)
	repo.AssertExpectations(t)
}

// lateClient ignores cancellation and answers once released.
type lateClient struct {
	started chan struct{}
	release chan struct{}
}

func (c *lateClient) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	c.started <- struct{}{}
	<-c.release
	return &analysis.Result{AnalysisID: req.AnalysisID, ReceivedAt: time.Now()}, nil
}

func TestLateSuccessAfterDatasetSwapIsRecordedAsDiscarded(t *testing.T) {
	client := &lateClient{started: make(chan struct{}, 1), release: make(chan struct{})}
	repo := &MockRunRepository{}
	repo.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *models.AnalysisRun) bool {
		return r.Status == models.RunDiscarded && r.Results == "" && r.Error == ""
	})).Return(nil).Once()

	m, err := NewSessionManager(ManagerConfig{Catalog: analysis.DefaultCatalog(), Client: client, Runs: repo})
	require.NoError(t, err)
	ws := m.Workspace(core.NewSessionID())
	require.NoError(t, ws.LoadDataset(numericDataset(t, "first", 40, "a", "b")))
	s, err := ws.Session(analysis.LinearRegression)
	require.NoError(t, err)
	_, _ = s.Next(context.Background())
	_, _ = s.Next(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		done <- err
	}()
	<-client.started
	require.NoError(t, ws.LoadDataset(numericDataset(t, "second", 40, "x", "y")))
	close(client.release)

	assert.ErrorIs(t, <-done, wizard.ErrStaleRun)
	assert.Nil(t, s.Controller().State().LastResult)
	repo.AssertExpectations(t)
}

func TestRerunFailureFromSummaryIsReportedAsFailed(t *testing.T) {
	server := &statsServer{status: 200, body: regressionBody}
	s := newRegressionSession(t, newStatsClient(t, server), numericDataset(t, "d", 40, "a", "b"))
	for s.Controller().State().CurrentStep < 4 {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}

	server.mu.Lock()
	server.status, server.body = 500, `{"error":"invalid data"}`
	server.mu.Unlock()
	st, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, st.CurrentStep)
	assert.Equal(t, "invalid data", st.LastError)

	view := s.View()
	assert.Equal(t, wizard.PhaseFailed, view.Phase)
	assert.Nil(t, view.Result)
}

func TestSampleSizeCountsNonMissingValues(t *testing.T) {
	rows := make([]dataset.Row, 40)
	for i := range rows {
		rows[i] = dataset.Row{"a": fmt.Sprint(i % 7), "b": fmt.Sprint(i * 3 % 11)}
		if i >= 20 {
			rows[i]["b"] = ""
		}
	}
	ds, err := dataset.New("gappy", dataset.SourceUpload, []string{"a", "b"}, rows)
	require.NoError(t, err)
	s := newRegressionSession(t, &statsapi.Client{}, ds)

	for _, c := range s.Checks() {
		if c.ID == "sample_size" {
			assert.False(t, c.Passed)
			assert.Equal(t, "n = 20, at least 30 required", c.Detail)
			return
		}
	}
	t.Fatal("sample_size check missing")
}

func TestWorkspaceRequiresDataset(t *testing.T) {
	m, err := NewSessionManager(ManagerConfig{Catalog: analysis.DefaultCatalog(), Client: &statsapi.Client{}})
	require.NoError(t, err)
	ws := m.Workspace(core.NewSessionID())
	_, err = ws.Session(analysis.TTest)
	assert.ErrorIs(t, err, core.ErrNoDataset)

	require.NoError(t, ws.LoadDataset(numericDataset(t, "d", 30, "a")))
	_, err = ws.Session("options-pricing")
	assert.True(t, core.IsNotFound(err))

	a, err := ws.Session(analysis.TTest)
	require.NoError(t, err)
	b, err := ws.Session(analysis.TTest)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestManagerSweepsIdleWorkspaces(t *testing.T) {
	m, err := NewSessionManager(ManagerConfig{Catalog: analysis.DefaultCatalog(), Client: &statsapi.Client{}, IdleTimeout: time.Minute})
	require.NoError(t, err)
	id := core.NewSessionID()
	ws := m.Workspace(id)
	require.NoError(t, ws.LoadDataset(numericDataset(t, "d", 30, "a")))
	_, err = ws.Session(analysis.MonteCarlo)
	require.NoError(t, err)
	m.Workspace(core.NewSessionID())

	assert.Zero(t, m.Sweep())
	assert.Equal(t, 2, m.Count())

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 2, m.Sweep())
	_, err = m.Lookup(id)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestViewMarksSteps(t *testing.T) {
	s := newRegressionSession(t, &statsapi.Client{}, numericDataset(t, "d", 40, "a", "b"))
	_, _ = s.Next(context.Background())
	v := s.View()
	require.Len(t, v.Steps, 6)
	assert.True(t, v.Steps[0].Done)
	assert.True(t, v.Steps[1].Current)
	assert.False(t, v.Steps[2].Reachable)
	assert.Equal(t, wizard.PhaseEditing, v.Phase)
	require.NotEmpty(t, v.Fields)
	assert.Equal(t, "degree", v.Fields[0].Field.Key)
	assert.Equal(t, "1", v.Fields[0].Value())
}
