package ws

// Subscriber abstracts a streaming chat client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans replies out to every connection a user has open. The run goroutine
// owns the client map, so no locking is needed.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples a payload with the user it belongs to.
type message struct {
	userKey string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	userKey string
	client  Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.userKey]; !ok {
				h.clients[sub.userKey] = make(map[Subscriber]struct{})
			}
			h.clients[sub.userKey][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.userKey]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.userKey)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.userKey]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.userKey)
				}
			}
		}
	}
}

// Register adds a client to a user's reply stream.
func (h *Hub) Register(userKey string, client Subscriber) {
	h.register <- subscription{userKey: userKey, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(userKey string, client Subscriber) {
	h.unreg <- subscription{userKey: userKey, client: client}
}

// Broadcast sends a payload to all of the user's connections.
func (h *Hub) Broadcast(userKey string, payload []byte) {
	h.broadcast <- message{userKey: userKey, payload: payload}
}
