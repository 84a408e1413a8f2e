package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // served on localhost only
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type        string               `json:"type"`
	Content     string               `json:"content,omitempty"`
	Generation  uint64               `json:"generation,omitempty"`
	Result      *sandbox.Result      `json:"result,omitempty"`
	Suggestions []suggest.Suggestion `json:"suggestions,omitempty"`
}

// wsConn serializes writes from the read loop and the suggestion waiters.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v wsOutgoing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wsWriteJSON(c.conn, v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	as, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Cancelled on client disconnect, releasing pending waiters
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &wsConn{conn: conn}
	var waiters sync.WaitGroup
	defer waiters.Wait()

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: %v", err)
			}
			cancel()
			return
		}

		if msg.Type != "run" {
			c.send(wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		res, gen := as.Run(s.mentor.Engine, msg.Content)
		c.send(wsOutgoing{Type: "result", Generation: gen, Result: &res})
		c.send(wsOutgoing{Type: "analyzing", Generation: gen})

		waiters.Add(1)
		go func() {
			defer waiters.Done()
			s.deliverSuggestions(ctx, c, as, gen)
		}()
	}
}

// deliverSuggestions waits for gen to publish and sends its list, unless a
// newer run has superseded it by then.
func (s *Server) deliverSuggestions(ctx context.Context, c *wsConn, as *ActiveSession, gen uint64) {
	list, err := as.Orchestrator.Wait(ctx)
	if err != nil {
		return
	}
	if as.Orchestrator.Generation() != gen {
		return
	}
	if list == nil {
		list = []suggest.Suggestion{}
	}
	c.send(wsOutgoing{Type: "suggestions", Generation: gen, Suggestions: list})
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
