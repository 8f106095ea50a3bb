package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/cleanlists/api/internal/model"
)

// Client represents a WebSocket client subscribed to one job's progress.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active progress subscriptions keyed by job id. Delivery is
// fire-and-forget: a slow or gone subscriber never blocks job processing.
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to job subscribers
	broadcast chan *BroadcastMessage

	heartbeatInterval time.Duration

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(heartbeatInterval time.Duration) *Hub {
	return &Hub{
		clients:           make(map[string]map[*Client]bool),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		broadcast:         make(chan *BroadcastMessage, 256),
		heartbeatInterval: heartbeatInterval,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.JobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress sends a batch checkpoint to all job subscribers.
func (h *Hub) BroadcastProgress(job *model.CleanPlaylistJob, message string) {
	h.send(job.ID, model.ProgressEvent{
		Type:            model.EventTypeProgress,
		JobID:           job.ID,
		Progress:        job.Progress(),
		ProcessedTracks: job.ProcessedTracks,
		TotalTracks:     job.TotalTracks,
		CurrentBatch:    job.CurrentBatch,
		Message:         message,
	})
}

// BroadcastCompleted sends the terminal success event.
func (h *Hub) BroadcastCompleted(job *model.CleanPlaylistJob) {
	h.send(job.ID, model.CompletedEvent{
		Type:               model.EventTypeCompleted,
		JobID:              job.ID,
		TargetPlaylistID:   job.TargetPlaylistID,
		TargetPlaylistName: job.TargetPlaylistName,
		MatchedTracks:      job.MatchedTracks,
		TotalTracks:        job.TotalTracks,
	})
}

// BroadcastFailed sends the terminal failure event.
func (h *Hub) BroadcastFailed(jobID, errorMessage string) {
	h.send(jobID, model.FailedEvent{
		Type:  model.EventTypeFailed,
		JobID: jobID,
		Error: errorMessage,
	})
}

func (h *Hub) send(jobID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %T: %v", event, err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		JobID:   jobID,
		Message: data,
	}
}

// HandleConnection serves one subscriber. While processing reports active,
// a heartbeat event is written on a timer so long-lived connections can
// detect silent failure.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, processing func() bool) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Writer goroutine
	go func() {
		ticker := time.NewTicker(h.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if processing != nil && processing() {
					data, _ := json.Marshal(model.HeartbeatEvent{
						Type:  model.EventTypeHeartbeat,
						JobID: jobID,
					})
					if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				} else if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop; exits on disconnect
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
