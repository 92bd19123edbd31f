package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/models"
)

// TopicScores carries every game update; league topics carry standings
// change notices for one league.
const TopicScores = "scores"

func LeagueTopic(leagueID uint) string {
	return fmt.Sprintf("league:%d", leagueID)
}

// LiveScoreHub fans score and standings updates out to websocket
// clients. Clients subscribe to topic strings; a client whose send
// buffer stays full is dropped rather than allowed to stall the
// broadcast.
type LiveScoreHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	hub    *LiveScoreHub
	conn   *websocket.Conn
	send   chan []byte
	userID uint

	topicMu sync.RWMutex
	topics  map[string]bool
}

type HubMessage struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Subscription struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

func NewLiveScoreHub() *LiveScoreHub {
	return &LiveScoreHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *LiveScoreHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logrus.Infof("Live score client registered: user_id=%d", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.mu.Unlock()
				logrus.Infof("Live score client unregistered: user_id=%d", client.userID)
			} else {
				h.mu.Unlock()
			}
		}
	}
}

// Register adds a new client to the hub
func (h *LiveScoreHub) Register(client *Client) {
	h.register <- client
}

// BroadcastGameUpdate pushes one game's new state to every client on
// the scores topic.
func (h *LiveScoreHub) BroadcastGameUpdate(game *models.Game) {
	if err := h.BroadcastToTopic(TopicScores, "game_update", game); err != nil {
		logrus.Errorf("Failed to broadcast game update: %v", err)
	}
}

// BroadcastStandingsChanged tells one league's clients that settlement
// changed the standings and cached reads are stale.
func (h *LiveScoreHub) BroadcastStandingsChanged(leagueID uint, week int) {
	payload := map[string]interface{}{
		"league_id": leagueID,
		"week":      week,
	}
	if err := h.BroadcastToTopic(LeagueTopic(leagueID), "standings_changed", payload); err != nil {
		logrus.Errorf("Failed to broadcast standings change: %v", err)
	}
}

func (h *LiveScoreHub) BroadcastToTopic(topic string, messageType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	message := HubMessage{
		Type:      messageType,
		Topic:     topic,
		Data:      jsonData,
		Timestamp: time.Now().UTC(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.IsSubscribedTo(topic) {
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Drop clients that cannot keep up instead of blocking the hub.
	for _, client := range slow {
		logrus.Warnf("Dropping slow live score client: user_id=%d", client.userID)
		client.conn.Close()
		h.unregister <- client
	}

	return nil
}

// ClientCount reports how many clients are currently connected.
func (h *LiveScoreHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func NewClient(hub *LiveScoreHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		topics: map[string]bool{TopicScores: true},
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var sub Subscription
		err := c.conn.ReadJSON(&sub)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.topicMu.Lock()
		switch sub.Action {
		case "subscribe":
			for _, topic := range sub.Topics {
				c.topics[topic] = true
			}
		case "unsubscribe":
			for _, topic := range sub.Topics {
				delete(c.topics, topic)
			}
		}
		c.topicMu.Unlock()
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) IsSubscribedTo(topic string) bool {
	c.topicMu.RLock()
	defer c.topicMu.RUnlock()
	return c.topics[topic] || c.topics["*"] // "*" subscribes to all topics
}
