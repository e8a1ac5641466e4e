package infra

import (
	"log"
	"time"

	"gestionlearn.com/internal/model"
)

// PushMessage is the JSON frame written to websocket clients.
type PushMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventDispatcher delivers messages from the events channel to the local
// websocket clients they address.
type EventDispatcher struct {
	wsManager *WsManager
}

func NewEventDispatcher(wsManager *WsManager) *EventDispatcher {
	return &EventDispatcher{wsManager: wsManager}
}

// Dispatch is the handler passed to StartEventSubscriber.
func (d *EventDispatcher) Dispatch(msg EventMessage) {
	if len(msg.UserIDs) == 0 && len(msg.Roles) == 0 {
		return
	}

	roles := make([]model.Role, 0, len(msg.Roles))
	for _, r := range msg.Roles {
		role := model.Role(r)
		if !role.Valid() {
			log.Printf("EventDispatcher: ignoring unknown role %q in %s", r, msg.Type)
			continue
		}
		roles = append(roles, role)
	}

	d.wsManager.PushTo(msg.UserIDs, roles, PushMessage{
		Type:      msg.Type,
		Data:      msg.Data,
		Timestamp: msg.Timestamp,
	})
}
