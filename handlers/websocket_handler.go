package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler принимает список разрешенных Origin. "*" или пустой список разрешают все.
func NewWebSocketHandler(hub *broadcast.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeTournament подключает клиента к комнате турнира: /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.serve(w, r, broadcast.TournamentRoom(tournamentID))
}

// ServeGlobal подключает клиента к общей комнате (все события всех турниров).
func (h *WebSocketHandler) ServeGlobal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, broadcast.GlobalRoom)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту
		log.Printf("Failed to upgrade connection for room %s: %v", room, err)
		return
	}

	client := broadcast.NewClient(h.hub, conn, room)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Printf("Client registered for room %s", room)
}
