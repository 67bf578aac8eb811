package server

import (
	"log"
	"sync"
	"time"

	"github.com/geoping/geoping-server/internal/stats"
)

const idleChannelTimeout = time.Second * 30

type exitReq struct {
	deleted bool
	done    chan bool
}

// Channel is the live fan-out group for one room. Every loaded channel runs
// its own goroutine; all joins, leaves and broadcasts for the room serialize
// through it.
type Channel struct {
	roomId      string
	cs          *ChatServer
	joinChan    chan *ClientMessage
	leaveChan   chan *ClientMessage
	publishChan chan *ServerMessage
	clients     map[*Client]struct{}
	userMap     map[int]map[*Client]struct{}
	clientLock  sync.RWMutex
	log         *log.Logger
	// killTimer unloads the channel once the last client leaves
	killTimer *time.Timer
	// exit signals the channel to shut down
	exit chan exitReq
	done chan struct{}
}

func (ch *Channel) start() {
	ch.log.Printf("starting channel %q", ch.roomId)
	ch.killTimer = time.NewTimer(idleChannelTimeout)
	ch.killTimer.Stop()

	for {
		select {
		case join := <-ch.joinChan:
			ch.handleJoin(join)
		case leaveMsg := <-ch.leaveChan:
			ch.handleLeave(leaveMsg)
		case msg := <-ch.publishChan:
			ch.broadcast(msg)
		case <-ch.killTimer.C:
			ch.handleChannelTimeout()
		case e := <-ch.exit:
			ch.handleChannelExit(e)
			return
		}
	}
}

func (ch *Channel) handleJoin(join *ClientMessage) {
	// stop the kill timer since we have a new client
	ch.killTimer.Stop()

	c := join.client
	firstSession := ch.userMap[c.user.Id] == nil
	ch.addClient(c)

	c.queueMessage(NoErrOK(join.Id, map[string]any{
		"room_id": ch.roomId,
		"members": ch.memberCount(),
	}))

	if firstSession {
		// announce the user once per user, not per connection
		ch.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				MemberJoined: &Member{
					RoomId:   ch.roomId,
					UserId:   c.user.Id,
					Username: c.user.Username,
				},
			},
			SkipClient: c,
		})
	}
}

func (ch *Channel) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client
	removed := ch.removeClient(c)

	if leaveMsg.Id != 0 {
		// the leave came from a client request, acknowledge it
		c.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	// a duplicate leave racing a disconnect already announced the departure
	if !removed {
		return
	}

	// announce the departure once the user's last session is gone
	if ch.userMap[c.user.Id] == nil {
		ch.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				MemberLeft: &Member{
					RoomId:   ch.roomId,
					UserId:   c.user.Id,
					Username: c.user.Username,
				},
			},
			SkipClient: c,
		})
	}
}

func (ch *Channel) handleChannelTimeout() {
	ch.log.Printf("channel %q timed out", ch.roomId)
	ch.cs.unloadChan <- ch.roomId
}

func (ch *Channel) handleChannelExit(e exitReq) {
	ch.log.Printf("channel %q is exiting", ch.roomId)
	if e.deleted {
		// tell connected clients the room is gone
		ch.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				RoomDeleted: &RoomDeleted{RoomId: ch.roomId},
			},
		})
	}

	ch.clientLock.Lock()
	for c := range ch.clients {
		c.delChannel(ch.roomId)
	}
	ch.clientLock.Unlock()

	if e.done != nil {
		e.done <- true
	}
	close(ch.done)
}

func (ch *Channel) addClient(c *Client) {
	ch.clientLock.Lock()
	defer ch.clientLock.Unlock()

	ch.clients[c] = struct{}{}
	if ch.userMap[c.user.Id] == nil {
		ch.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	ch.userMap[c.user.Id][c] = struct{}{}

	c.addChannel(ch)
}

func (ch *Channel) removeClient(c *Client) bool {
	ch.clientLock.Lock()
	defer ch.clientLock.Unlock()

	if _, ok := ch.clients[c]; !ok {
		ch.log.Printf("client %q not found in channel %q", c.user.Username, ch.roomId)
		return false
	}

	delete(ch.clients, c)
	c.delChannel(ch.roomId)

	if userClients, ok := ch.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(ch.userMap, c.user.Id)
		}
	}

	ch.log.Printf("removed client %q from channel %q", c.user.Username, ch.roomId)

	// last client out starts the kill timer
	if len(ch.clients) == 0 {
		ch.log.Printf("no clients in %q, starting kill timer", ch.roomId)
		ch.killTimer.Reset(idleChannelTimeout)
	}

	return true
}

func (ch *Channel) memberCount() int {
	ch.clientLock.RLock()
	defer ch.clientLock.RUnlock()
	return len(ch.userMap)
}

func (ch *Channel) broadcast(msg *ServerMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}

	ch.clientLock.RLock()
	defer ch.clientLock.RUnlock()

	for client := range ch.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}

	ch.cs.stats.Incr(stats.EventsBroadcast)
}
