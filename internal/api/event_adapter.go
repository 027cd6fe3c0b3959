package api

import (
	"statwizard/domain/core"
	"statwizard/internal/wizard"
)

// WizardBroadcaster adapts the SSEHub to a wizard observer
type WizardBroadcaster struct {
	hub        *SSEHub
	sessionID  core.SessionID
	analysisID core.AnalysisID
}

// NewWizardBroadcaster creates an observer streaming one wizard's events
func NewWizardBroadcaster(hub *SSEHub, sessionID core.SessionID, analysisID core.AnalysisID) *WizardBroadcaster {
	return &WizardBroadcaster{hub: hub, sessionID: sessionID, analysisID: analysisID}
}

// Notify converts a controller event and broadcasts it
func (b *WizardBroadcaster) Notify(e wizard.Event) {
	b.hub.Broadcast(WizardEvent{
		SessionID:  b.sessionID.String(),
		AnalysisID: b.analysisID.String(),
		EventType:  string(e.Kind),
		Step:       e.Step,
		Message:    e.Message,
		DurationMs: e.Duration.Milliseconds(),
		Timestamp:  e.At,
	})
}
