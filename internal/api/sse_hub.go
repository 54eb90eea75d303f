package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"floodcv/app"
	"floodcv/internal"

	"github.com/gin-gonic/gin"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	RunID   string
	Channel chan RunEvent
}

// RunEvent is one progress or status update of a background run.
type RunEvent struct {
	RunID     string          `json:"run_id"`
	EventType string          `json:"event_type"`
	Run       app.RunSnapshot `json:"run"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	EventProgress = "progress"
	EventFinished = "finished"
)

// SSEHub fans run events out to Server-Sent Events clients.
type SSEHub struct {
	clients    map[string]map[chan RunEvent]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan RunEvent
	done       chan struct{}
	keepAlive  time.Duration
	logger     *internal.Logger
}

// NewSSEHub creates a hub and starts its dispatch loop.
func NewSSEHub(logger *internal.Logger) *SSEHub {
	hub := &SSEHub{
		clients:    make(map[string]map[chan RunEvent]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan RunEvent, 100),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
		logger:     logger.Named("SSE"),
	}

	go hub.run()
	return hub
}

// Close stops the dispatch loop. Connected clients see their streams end.
func (h *SSEHub) Close() {
	close(h.done)
}

func (h *SSEHub) run() {
	for {
		select {
		case <-h.done:
			h.clientsMu.Lock()
			for runID, clients := range h.clients {
				for ch := range clients {
					close(ch)
				}
				delete(h.clients, runID)
			}
			h.clientsMu.Unlock()
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[chan RunEvent]bool)
			}
			h.clients[client.RunID][client.Channel] = true
			h.logger.Debug("client registered for run %s (total clients: %d)", client.RunID, len(h.clients[client.RunID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.RunID]; exists && clients[client.Channel] {
				delete(clients, client.Channel)
				close(client.Channel)
				if len(clients) == 0 {
					delete(h.clients, client.RunID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.RunID] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("client channel full for run %s, skipping event", event.RunID)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast sends an event to all clients following its run.
func (h *SSEHub) Broadcast(event RunEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping %s event for run %s", event.EventType, event.RunID)
	}
}

// HandleSSE streams the events of the run named by the :id parameter.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	runID := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan RunEvent, 10)
	select {
	case h.register <- SSEClient{RunID: runID, Channel: clientChan}:
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SSE hub registration failed"})
		return
	}
	defer func() {
		select {
		case h.unregister <- SSEClient{RunID: runID, Channel: clientChan}:
		case <-h.done:
		}
	}()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.EventType, string(data))
			return event.EventType != EventFinished

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// ClientCount returns the number of clients following a run.
func (h *SSEHub) ClientCount(runID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}
