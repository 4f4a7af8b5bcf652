package broadcast

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// GlobalRoom получает все события независимо от турнира (табло клуба, панель администратора).
const GlobalRoom = "global"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// TournamentRoom возвращает имя комнаты websocket для турнира.
func TournamentRoom(tournamentID int) string {
	return "tournament_" + strconv.Itoa(tournamentID)
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Room     string
	IsClosed bool
	Mu       sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
		Room: room,
	}
}

type roomMessage struct {
	room    string
	payload []byte
}

// Hub держит websocket-клиентов по комнатам. Hub реализует Publisher:
// событие турнира уходит в его комнату и в GlobalRoom.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan roomMessage
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, sendBufferSize),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			log.Printf("Client registered to room %s. Total clients in room: %d", client.Room, len(h.rooms[client.Room]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg.room, msg.payload)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	roomClients, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, okClient := roomClients[client]; !okClient {
		return
	}
	client.Mu.Lock()
	if !client.IsClosed {
		close(client.Send)
		client.IsClosed = true
	}
	client.Mu.Unlock()
	delete(roomClients, client)
	if len(roomClients) == 0 {
		delete(h.rooms, client.Room)
		log.Printf("Room %s closed as it's empty.", client.Room)
	} else {
		log.Printf("Client unregistered from room %s. Total clients in room: %d", client.Room, len(roomClients))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, roomClients := range h.rooms {
		for client := range roomClients {
			h.removeLocked(client)
		}
	}
}

// Publish ставит событие в очередь рассылки. Если очередь переполнена, событие теряется.
func (h *Hub) Publish(_ context.Context, event Event) {
	payload, err := event.Marshal()
	if err != nil {
		log.Printf("Error marshalling event %s: %v", event.Type, err)
		return
	}
	h.PublishRaw(event.TournamentID, payload)
}

// PublishRaw рассылает уже сериализованное событие. Используется ретранслятором Redis.
func (h *Hub) PublishRaw(tournamentID int, payload []byte) {
	rooms := []string{GlobalRoom}
	if tournamentID > 0 {
		rooms = append(rooms, TournamentRoom(tournamentID))
	}
	for _, room := range rooms {
		select {
		case h.broadcast <- roomMessage{room: room, payload: payload}:
		default:
			log.Printf("Hub broadcast queue full. Dropping message for room %s.", room)
		}
	}
}

// deliver отправляет сообщение всем клиентам в указанной комнате.
func (h *Hub) deliver(roomID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range roomClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("Client's send channel full for room %s. Skipping.", roomID)
		}
		client.Mu.Unlock()
	}
}

// RoomSize возвращает число клиентов в комнате.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
		log.Printf("Client readPump closed for room %s", c.Room)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		log.Printf("Client writePump closed for room %s", c.Room)
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Одно событие - один кадр, чтобы клиент мог разобрать каждый JSON отдельно.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing to client in room %s: %v", c.Room, err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error sending ping to client in room %s: %v", c.Room, err)
				return
			}
		}
	}
}
