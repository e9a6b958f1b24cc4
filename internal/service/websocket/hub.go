package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"detectdemo/internal/dto"
	"detectdemo/internal/logger"
	"detectdemo/internal/service/pipeline"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	writeWait       = 5 * time.Second
)

// registration carries a new viewer and the message it must see first.
type registration struct {
	client  *websocket.Conn
	initial func() ([]byte, error)
}

// HubService fans pipeline state out to every connected viewer.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan registration
	unregister chan *websocket.Conn
	done       chan struct{} // Closed when Run returns
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case reg := <-h.register:
			if reg.initial != nil {
				if err := h.sendInitial(reg); err != nil {
					h.logger.Error("Error sending initial message: %v", err)
					reg.client.Close()
					continue
				}
			}
			h.mutex.Lock()
			h.clients[reg.client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds client. When initial is not nil its message is written
// before any broadcast queued after the registration, so the viewer never
// misses a change. After Run has returned the client is closed instead.
func (h *HubService) Register(client *websocket.Conn, initial func() ([]byte, error)) {
	select {
	case h.register <- registration{client: client, initial: initial}:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) sendInitial(reg registration) error {
	message, err := reg.initial()
	if err != nil {
		return err
	}
	reg.client.SetWriteDeadline(time.Now().Add(writeWait))
	return reg.client.WriteMessage(websocket.TextMessage, message)
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for all viewers. It never blocks; when the queue
// is full the message is dropped.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Broadcast queue full, dropping message")
	}
}

// Publish is a pipeline.Listener that forwards state changes and alerts.
func (h *HubService) Publish(event pipeline.Event) {
	var msg dto.StateMessage
	switch event.Kind {
	case pipeline.EventState:
		msg = dto.NewStateMessage(event.State)
	case pipeline.EventAlert:
		msg = dto.NewAlertMessage(event.Alert)
	default:
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode %s message: %v", event.Kind, err)
		return
	}
	h.Broadcast(data)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
