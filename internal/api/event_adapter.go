package api

import (
	"time"

	"floodcv/app"
)

// SSERunObserver adapts the SSEHub to the run registry's observer interface
type SSERunObserver struct {
	sseHub *SSEHub
}

// NewSSERunObserver creates a new SSE run observer
func NewSSERunObserver(sseHub *SSEHub) *SSERunObserver {
	return &SSERunObserver{sseHub: sseHub}
}

// RunUpdated broadcasts a run snapshot via SSE
func (o *SSERunObserver) RunUpdated(snap app.RunSnapshot) {
	eventType := EventProgress
	if snap.Status != app.RunRunning {
		eventType = EventFinished
	}
	o.sseHub.Broadcast(RunEvent{
		RunID:     snap.ID.String(),
		EventType: eventType,
		Run:       snap,
		Timestamp: time.Now().UTC(),
	})
}
