package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fieldforms/fieldforms-go/internal/services/pubsub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local single-user server; origin checks add nothing
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage is the envelope pushed to websocket clients.
type wsMessage struct {
	Topic   pubsub.Topic `json:"topic"`
	Payload any          `json:"payload"`
}

// handleWebsocket streams entry events to a client. Query params:
// `topic` selects the event stream (default ENTRY_UPDATED) and
// `entryId` optionally filters to one entry.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	topic := pubsub.Topic(r.URL.Query().Get("topic"))
	if topic == "" {
		topic = pubsub.TopicEntryUpdated
	}
	filter := r.URL.Query().Get("entryId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	sub := s.events.Subscribe(topic, filter, 16)
	done := make(chan struct{})

	// Read loop exists only to notice the client going away.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.events.Unsubscribe(sub)
			_ = conn.Close()
			return
		case msg, ok := <-sub.Channel:
			if !ok {
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(wsMessage{Topic: topic, Payload: msg}); err != nil {
				s.events.Unsubscribe(sub)
				_ = conn.Close()
				return
			}
		}
	}
}
