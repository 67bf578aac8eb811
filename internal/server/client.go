package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/geoping/geoping-server/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. It starts unauthenticated; the first
// frame must be an auth message carrying a session token, everything else is
// rejected until then.
type Client struct {
	conn          *websocket.Conn
	chatServer    *ChatServer
	log           *log.Logger
	user          types.User
	authenticated bool
	send          chan *ServerMessage
	channels      map[string]*Channel
	channelsLock  sync.RWMutex
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerMessage, 256),
		channels:   make(map[string]*Channel),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		if msg.Auth != nil {
			c.authenticate(&msg)
			continue
		}

		if !c.authenticated {
			c.queueMessage(ErrNotAuthenticated(msg.Id))
			continue
		}

		msg.UserId = c.user.Id

		switch {
		case msg.Join != nil:
			c.joinChannel(&msg)
		case msg.Leave != nil:
			c.leaveChannel(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) authenticate(msg *ClientMessage) {
	identity, err := c.chatServer.tokenManager.Verify(msg.Auth.Token)
	if err != nil {
		c.log.Println("ws auth failed:", err)
		c.queueMessage(ErrNotAuthenticated(msg.Id))
		return
	}

	if c.authenticated {
		// re-auth on a live connection just refreshes the identity
		c.user = types.User{Id: identity.UserId, Username: identity.Username}
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"user_id": c.user.Id}))
		return
	}

	c.user = types.User{Id: identity.UserId, Username: identity.Username}
	c.authenticated = true
	c.chatServer.RegisterChan <- c

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"user_id":  c.user.Id,
		"username": c.user.Username,
	}))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		// a full queue means the reader stopped draining, drop the connection
		c.log.Println("send queue full, dropping slow client")
		c.stopClient()
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.leaveAllChannels()
	if c.authenticated {
		select {
		case c.chatServer.deRegisterChan <- c:
		case <-c.chatServer.done:
			// hub already shut down, nothing left to deregister from
		}
	}
	c.stopClient()
}

func (c *Client) leaveAllChannels() {
	c.channelsLock.RLock()
	defer c.channelsLock.RUnlock()

	for _, ch := range c.channels {
		ch.leaveChan <- &ClientMessage{
			Leave:  &Leave{RoomId: ch.roomId},
			UserId: c.user.Id,
			client: c,
		}
	}
}

func (c *Client) joinChannel(msg *ClientMessage) {
	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveChannel(msg *ClientMessage) {
	ch := c.getChannel(msg.Leave.RoomId)
	if ch == nil {
		// leaving a room that was never joined is a no-op
		c.log.Printf("leave for unjoined room %q", msg.Leave.RoomId)
		if msg.Id != 0 {
			c.queueMessage(NoErrOK(msg.Id, nil))
		}
		return
	}

	select {
	case ch.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", ch.roomId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) addChannel(ch *Channel) {
	c.channelsLock.Lock()
	defer c.channelsLock.Unlock()

	c.channels[ch.roomId] = ch
}

func (c *Client) delChannel(id string) {
	c.channelsLock.Lock()
	defer c.channelsLock.Unlock()

	delete(c.channels, id)
}

func (c *Client) getChannel(id string) *Channel {
	c.channelsLock.RLock()
	defer c.channelsLock.RUnlock()

	if ch, ok := c.channels[id]; ok {
		return ch
	}

	return nil
}
