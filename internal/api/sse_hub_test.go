package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statwizard/domain/core"
	"statwizard/internal/wizard"
)

func TestBroadcastReachesSessionClients(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Close()

	mine := make(chan WizardEvent, 1)
	other := make(chan WizardEvent, 1)
	hub.register <- SSEClient{SessionID: "s1", Channel: mine}
	hub.register <- SSEClient{SessionID: "s2", Channel: other}
	require.Eventually(t, func() bool { return hub.GetClientCount("s1") == 1 && hub.GetClientCount("s2") == 1 }, time.Second, 5*time.Millisecond)

	NewWizardBroadcaster(hub, "s1", "t-test").Notify(wizard.Event{Kind: wizard.EventRunFailed, Step: 3, Message: "invalid data", At: time.Now()})

	select {
	case e := <-mine:
		assert.Equal(t, "run_failed", e.EventType)
		assert.Equal(t, "t-test", e.AnalysisID)
		assert.Equal(t, "invalid data", e.Message)
		assert.Equal(t, 3, e.Step)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case e := <-other:
		t.Fatalf("event leaked to another session: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}

	hub.unregister <- SSEClient{SessionID: "s1", Channel: mine}
	require.Eventually(t, func() bool { return hub.GetClientCount("s1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandleSSEStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewSSEHub()
	defer hub.Close()

	r := gin.New()
	r.GET("/events", hub.HandleSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	sid := core.NewSessionID()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session_id="+sid.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.GetClientCount(sid.String()) == 1 }, time.Second, 5*time.Millisecond)
	NewWizardBroadcaster(hub, sid, "monte-carlo").Notify(wizard.Event{Kind: wizard.EventRunSucceeded, Step: 4, At: time.Now()})

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event:wizard" {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data:") {
			sawData = strings.Contains(line, `"event_type":"run_succeeded"`)
			break
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawData)
}

func TestHandleSSERequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewSSEHub()
	defer hub.Close()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil)
	hub.HandleSSE(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
