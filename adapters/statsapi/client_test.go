package statsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statwizard/domain/analysis"
	"statwizard/domain/dataset"
	"statwizard/internal/errors"
)

func monteCarloRequest(t *testing.T) analysis.Request {
	t.Helper()
	rows := make([]dataset.Row, 10)
	for i := range rows {
		rows[i] = dataset.Row{"price": fmt.Sprint(100 + i)}
	}
	ds, err := dataset.New("prices", dataset.SourceUpload, []string{"price"}, rows)
	require.NoError(t, err)
	def, err := analysis.DefaultCatalog().Get(analysis.MonteCarlo)
	require.NoError(t, err)
	req, err := def.BuildRequest(analysis.Input{Dataset: ds, Selections: def.Defaults(ds)})
	require.NoError(t, err)
	return req
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, MaxConcurrent: 2})
	require.NoError(t, err)
	return c, srv
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotPath, gotType string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		respond(http.StatusOK, `{"results":{"mean":104.5,"std_dev":3.1,"percentiles":{"5":99.1,"95":110.2}},
			"interpretation":["The **mean** outcome is 104.5."],
			"plot":"data:image/png;base64,iVBORw0KGgo="}`)(w, r)
	})

	res, err := c.Analyze(context.Background(), monteCarloRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "/api/simulation/monte-carlo", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Len(t, gotBody["values"], 10)

	assert.Equal(t, analysis.MonteCarlo, string(res.AnalysisID))
	assert.JSONEq(t, `{"mean":104.5,"std_dev":3.1,"percentiles":{"5":99.1,"95":110.2}}`, string(res.Results))
	assert.Equal(t, []string{"The **mean** outcome is 104.5."}, res.Interpretation)
	assert.Equal(t, "iVBORw0KGgo=", res.Plot)
	assert.NotEmpty(t, res.Summary.Headline)
	assert.False(t, res.ReceivedAt.IsZero())
}

func TestAnalyzeInterpretationAsString(t *testing.T) {
	c, _ := newTestClient(t, respond(http.StatusOK, `{"results":{"mean":1},"interpretation":"single note"}`))
	res, err := c.Analyze(context.Background(), monteCarloRequest(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"single note"}, res.Interpretation)
	assert.False(t, res.HasPlot())
}

func TestAnalyzeFailureClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{"http error with error field", 500, `{"error":"invalid data"}`, errors.CodeUpstream, "invalid data"},
		{"http error with detail", 422, `{"detail":"lags must be positive"}`, errors.CodeUpstream, "lags must be positive"},
		{"http error with detail list", 422, `{"detail":[{"loc":["body","values"],"msg":"field required"},{"msg":"value is not a valid float"}]}`, errors.CodeUpstream, "field required; value is not a valid float"},
		{"http error without message", 502, `<html>bad gateway</html>`, errors.CodeMalformedResponse, MsgMalformed},
		{"handled error on success status", 200, `{"results":null,"error":"Not enough observations"}`, errors.CodeUpstream, "Not enough observations"},
		{"error object on success status", 200, `{"error":{"message":"singular matrix"}}`, errors.CodeUpstream, "singular matrix"},
		{"not json", 200, `ok`, errors.CodeMalformedResponse, MsgMalformed},
		{"json array", 200, `[1,2]`, errors.CodeMalformedResponse, MsgMalformed},
		{"missing results", 200, `{"status":"done"}`, errors.CodeMalformedResponse, MsgMalformed},
		{"results wrong shape", 200, `{"results":{"std_dev":1}}`, errors.CodeMalformedResponse, MsgMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, respond(tc.status, tc.body))
			res, err := c.Analyze(context.Background(), monteCarloRequest(t))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tc.code, errors.GetCode(err))
			assert.Equal(t, tc.message, errors.UserMessage(err))
		})
	}
}

func TestNullErrorFieldIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, respond(http.StatusOK, `{"results":{"mean":2},"error":null}`))
	_, err := c.Analyze(context.Background(), monteCarloRequest(t))
	assert.NoError(t, err)
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{}`))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), monteCarloRequest(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeTransport, errors.GetCode(err))
	assert.Equal(t, MsgTransport, errors.UserMessage(err))
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), monteCarloRequest(t))
	assert.Equal(t, errors.CodeTransport, errors.GetCode(err))
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err = c.Analyze(ctx, monteCarloRequest(t))
	assert.Equal(t, errors.CodeTransport, errors.GetCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeIssuesExactlyOneCall(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(http.StatusInternalServerError, `{"error":"boom"}`)(w, r)
	})
	_, err := c.Analyze(context.Background(), monteCarloRequest(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrencyCap(t *testing.T) {
	var inflight, peak atomic.Int32
	gate := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-gate
		inflight.Add(-1)
		respond(http.StatusOK, `{"results":{"mean":1}}`)(w, r)
	})

	req := monteCarloRequest(t)
	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := c.Analyze(context.Background(), req)
			done <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(gate)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
