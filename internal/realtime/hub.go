// internal/realtime/hub.go

package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/numbay/numbay-backend/internal/numbers"
)

// Event is one realtime push frame
type Event struct {
	Type        string          `json:"type"`
	PhoneNumber string          `json:"phoneNumber"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Event types pushed to subscribers
const (
	EventOTPUpdate     = "otpUpdate"
	EventNumberExpired = "numberExpired"
)

type subscription struct {
	client      *Client
	phoneNumber string
}

// Hub maintains active websocket connections and their per-number
// subscriptions. It implements the lifecycle manager's event sink, so OTP
// arrivals and expiries reach subscribed clients without polling.
type Hub struct {
	// Registered clients and per-number subscriber sets
	clients     map[*Client]map[string]bool
	subscribers map[string]map[*Client]bool
	clientsMux  sync.RWMutex

	// Event broadcast channel
	broadcast chan Event

	// Register/unregister clients and subscriptions
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[*Client]map[string]bool),
		subscribers: make(map[string]map[*Client]bool),
		broadcast:   make(chan Event, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			h.addSubscription(sub)

		case sub := <-h.unsubscribe:
			h.removeSubscription(sub)

		case event := <-h.broadcast:
			h.dispatch(event)

		case <-h.ctx.Done():
			return
		}
	}
}

// OTPUpdate pushes the current OTP list to everyone watching the number
func (h *Hub) OTPUpdate(phoneNumber string, otps []numbers.OTP) {
	data, err := json.Marshal(otps)
	if err != nil {
		log.Printf("realtime: failed to marshal otps for %s: %v", phoneNumber, err)
		return
	}
	h.publish(Event{
		Type:        EventOTPUpdate,
		PhoneNumber: phoneNumber,
		Data:        data,
		Timestamp:   time.Now(),
	})
}

// NumberExpired notifies everyone watching the number that it was released
func (h *Hub) NumberExpired(phoneNumber string) {
	h.publish(Event{
		Type:        EventNumberExpired,
		PhoneNumber: phoneNumber,
		Timestamp:   time.Now(),
	})
}

// publish never blocks the lifecycle manager; a full hub drops the event
func (h *Hub) publish(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
	default:
		log.Printf("realtime: broadcast queue full, dropping %s for %s", event.Type, event.PhoneNumber)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.clients[client] = make(map[string]bool)
	log.Printf("realtime: client connected. Total clients: %d", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	subs, exists := h.clients[client]
	if !exists {
		return
	}

	for phoneNumber := range subs {
		h.dropSubscriber(phoneNumber, client)
	}
	delete(h.clients, client)
	client.Close()

	log.Printf("realtime: client disconnected. Total clients: %d", len(h.clients))
}

func (h *Hub) addSubscription(sub subscription) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	subs, exists := h.clients[sub.client]
	if !exists {
		return
	}
	subs[sub.phoneNumber] = true

	if h.subscribers[sub.phoneNumber] == nil {
		h.subscribers[sub.phoneNumber] = make(map[*Client]bool)
	}
	h.subscribers[sub.phoneNumber][sub.client] = true
}

func (h *Hub) removeSubscription(sub subscription) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if subs, exists := h.clients[sub.client]; exists {
		delete(subs, sub.phoneNumber)
	}
	h.dropSubscriber(sub.phoneNumber, sub.client)
}

// dropSubscriber must be called with clientsMux held
func (h *Hub) dropSubscriber(phoneNumber string, client *Client) {
	watchers, exists := h.subscribers[phoneNumber]
	if !exists {
		return
	}
	delete(watchers, client)
	if len(watchers) == 0 {
		delete(h.subscribers, phoneNumber)
	}
}

func (h *Hub) dispatch(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event: %v", err)
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	for client := range h.subscribers[event.PhoneNumber] {
		select {
		case client.send <- data:
		default:
			// Unregister if channel is blocked
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]map[string]bool)
	h.subscribers = make(map[string]map[*Client]bool)
	h.clientsMux.Unlock()
}

// Shutdown stops the hub and closes every connection
func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

func (h *Hub) GetActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}
