package infra

import (
	"context"
	"log"
	"sync"

	"gestionlearn.com/internal/model"
)

// WsClient is the part of a websocket connection the manager writes to.
// *websocket.Conn from gofiber/contrib satisfies it.
type WsClient interface {
	WriteJSON(v interface{}) error
	Close() error
}

type UserConnection struct {
	UserID uint
	Role   model.Role
	Conn   WsClient
}

type wsClientState struct {
	userID uint
	role   model.Role
	send   chan interface{}
}

// WsManager tracks authenticated websocket connections by user and role and
// pushes event payloads to them.
type WsManager struct {
	clients   map[WsClient]*wsClientState
	userConns map[uint]map[WsClient]bool
	roleConns map[model.Role]map[WsClient]bool

	// Mutex to protect maps
	mu sync.RWMutex

	Register   chan UserConnection
	Unregister chan WsClient

	done chan struct{}
}

func NewWsManager() *WsManager {
	return &WsManager{
		clients:    make(map[WsClient]*wsClientState),
		userConns:  make(map[uint]map[WsClient]bool),
		roleConns:  make(map[model.Role]map[WsClient]bool),
		Register:   make(chan UserConnection),
		Unregister: make(chan WsClient),
		done:       make(chan struct{}),
	}
}

// Start runs the registration loop until ctx is cancelled, then closes every
// remaining connection.
func (manager *WsManager) Start(ctx context.Context) {
	log.Println("Starting WebSocket Manager...")
	for {
		select {
		case req := <-manager.Register:
			manager.add(req)
			log.Printf("WebSocket client connected: user=%d role=%s", req.UserID, req.Role)

		case conn := <-manager.Unregister:
			manager.remove(conn)
			log.Println("WebSocket client disconnected")

		case <-ctx.Done():
			close(manager.done)
			manager.closeAll()
			log.Println("WebSocket Manager stopped")
			return
		}
	}
}

// Connect registers a connection and reports whether the manager accepted it.
// It returns false instead of blocking once the manager has stopped.
func (manager *WsManager) Connect(req UserConnection) bool {
	select {
	case manager.Register <- req:
		return true
	case <-manager.done:
		return false
	}
}

// Disconnect unregisters conn. It does not block once the manager has stopped.
func (manager *WsManager) Disconnect(conn WsClient) {
	select {
	case manager.Unregister <- conn:
	case <-manager.done:
	}
}

func (manager *WsManager) add(req UserConnection) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	// A buffered channel per connection keeps a slow client from blocking pushes.
	sendCh := make(chan interface{}, 256)
	manager.clients[req.Conn] = &wsClientState{userID: req.UserID, role: req.Role, send: sendCh}

	go func(conn WsClient, ch chan interface{}) {
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("WS WriteLoop error: %v", err)
				conn.Close()
				return
			}
		}
	}(req.Conn, sendCh)

	if manager.userConns[req.UserID] == nil {
		manager.userConns[req.UserID] = make(map[WsClient]bool)
	}
	manager.userConns[req.UserID][req.Conn] = true

	if manager.roleConns[req.Role] == nil {
		manager.roleConns[req.Role] = make(map[WsClient]bool)
	}
	manager.roleConns[req.Role][req.Conn] = true
}

func (manager *WsManager) remove(conn WsClient) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	state, ok := manager.clients[conn]
	if !ok {
		return
	}
	delete(manager.clients, conn)
	close(state.send)

	if conns := manager.userConns[state.userID]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(manager.userConns, state.userID)
		}
	}
	if conns := manager.roleConns[state.role]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(manager.roleConns, state.role)
		}
	}
}

func (manager *WsManager) closeAll() {
	manager.mu.Lock()
	conns := make([]WsClient, 0, len(manager.clients))
	for conn := range manager.clients {
		conns = append(conns, conn)
	}
	manager.mu.Unlock()

	for _, conn := range conns {
		manager.remove(conn)
		conn.Close()
	}
}

func (manager *WsManager) enqueue(conn WsClient, msg interface{}) {
	if state, ok := manager.clients[conn]; ok {
		select {
		case state.send <- msg:
		default:
			// Buffer full: drop message for this specific slow client
		}
	}
}

// PushToUser sends a message to all active connections of a specific user.
func (manager *WsManager) PushToUser(userID uint, msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for conn := range manager.userConns[userID] {
		manager.enqueue(conn, msg)
	}
}

// PushToRoles sends a message to every connection whose user holds one of roles.
func (manager *WsManager) PushToRoles(roles []model.Role, msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for _, role := range roles {
		for conn := range manager.roleConns[role] {
			manager.enqueue(conn, msg)
		}
	}
}

// PushTo sends msg once to every connection of the given users or roles.
func (manager *WsManager) PushTo(userIDs []uint, roles []model.Role, msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	seen := make(map[WsClient]bool)
	for _, id := range userIDs {
		for conn := range manager.userConns[id] {
			seen[conn] = true
		}
	}
	for _, role := range roles {
		for conn := range manager.roleConns[role] {
			seen[conn] = true
		}
	}
	for conn := range seen {
		manager.enqueue(conn, msg)
	}
}

// ConnectionCount returns the number of registered connections.
func (manager *WsManager) ConnectionCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients)
}
