package server

import (
	"log"
	"sync"

	"github.com/geoping/geoping-server/internal/auth"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/stats"
)

type publishReq struct {
	roomId string
	msg    *ServerMessage
}

// ChatServer owns the connection registry and the set of loaded channels.
// Channels are loaded lazily on the first join and unloaded after their idle
// timeout or when the room is deleted.
type ChatServer struct {
	log            *log.Logger
	db             database.GeoPingRepository
	tokenManager   *auth.TokenManager
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	publishChan    chan publishReq
	unloadChan     chan string
	RmRoomChan     chan string
	channels       map[string]*Channel
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.GeoPingRepository, tm *auth.TokenManager, sp stats.StatsProvider) (*ChatServer, error) {
	sp.RegisterMetric(stats.ActiveConnections)
	sp.RegisterMetric(stats.ActiveChannels)
	sp.RegisterMetric(stats.EventsBroadcast)
	sp.RegisterMetric(stats.PresenceUpdates)

	return &ChatServer{
		log:            logger,
		db:             db,
		tokenManager:   tm,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		publishChan:    make(chan publishReq, 256),
		unloadChan:     make(chan string),
		RmRoomChan:     make(chan string),
		channels:       make(map[string]*Channel),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection from %q", client.user.Username)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection from %q", client.user.Username)
			cs.removeClient(client)
		case req := <-cs.publishChan:
			if ch, ok := cs.channels[req.roomId]; ok {
				select {
				case ch.publishChan <- req.msg:
				default:
					cs.log.Printf("publish channel full on room %q", req.roomId)
				}
			}
		case id := <-cs.unloadChan:
			if ch, ok := cs.channels[id]; ok {
				cs.unloadChannel(id)
				ch.exit <- exitReq{}
				<-ch.done
			}
		case id := <-cs.RmRoomChan:
			if ch, ok := cs.channels[id]; ok {
				cs.unloadChannel(id)
				ch.exit <- exitReq{deleted: true}
				<-ch.done
			}
		case <-cs.stop:
			cs.log.Println("shutting down channels")
			for _, ch := range cs.channels {
				cs.log.Println("shutting down channel", ch.roomId)
				ch.exit <- exitReq{}
				<-ch.done
			}

			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) handleJoin(joinMsg *ClientMessage) {
	if ch, ok := cs.channels[joinMsg.Join.RoomId]; ok {
		select {
		case ch.joinChan <- joinMsg:
		default:
			cs.log.Printf("join channel full on room %q", ch.roomId)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	dbRoom, err := cs.db.GetRoomByPublicId(joinMsg.Join.RoomId)
	if err != nil {
		joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
		return
	}

	ch := &Channel{
		roomId:      dbRoom.PublicId,
		cs:          cs,
		joinChan:    make(chan *ClientMessage, 256),
		leaveChan:   make(chan *ClientMessage, 256),
		publishChan: make(chan *ServerMessage, 256),
		clients:     make(map[*Client]struct{}),
		userMap:     make(map[int]map[*Client]struct{}),
		log:         cs.log,
		exit:        make(chan exitReq),
		done:        make(chan struct{}),
	}

	cs.channels[ch.roomId] = ch
	cs.stats.Incr(stats.ActiveChannels)
	ch.joinChan <- joinMsg

	go ch.start()
}

// Publish queues an event for every client currently joined to the room.
// It never blocks: events for unloaded channels are dropped since nobody is
// listening, and callers keep the durable copy in the database.
func (cs *ChatServer) Publish(roomId string, msg *ServerMessage) {
	select {
	case cs.publishChan <- publishReq{roomId: roomId, msg: msg}:
	case <-cs.done:
	default:
		cs.log.Printf("dropping event for room %q, publish queue full", roomId)
	}
}

// UnloadRoom shuts down the room's channel and notifies its clients the room
// was deleted. Blocks until the channel goroutine has exited.
func (cs *ChatServer) UnloadRoom(roomId string) {
	select {
	case cs.RmRoomChan <- roomId:
	case <-cs.done:
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.ActiveConnections)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	if _, ok := cs.clients[c]; ok {
		delete(cs.clients, c)
		cs.stats.Decr(stats.ActiveConnections)
	}
}

func (cs *ChatServer) unloadChannel(roomId string) {
	if _, ok := cs.channels[roomId]; ok {
		cs.log.Printf("unloading channel %q", roomId)
		delete(cs.channels, roomId)
		cs.stats.Decr(stats.ActiveChannels)
	}
}

func (cs *ChatServer) Shutdown() {
	cs.log.Println("received shutdown signal")
	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	<-cs.done
}
