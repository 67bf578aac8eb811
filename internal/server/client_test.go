package server

import (
	"testing"
	"time"

	"github.com/geoping/geoping-server/internal/auth"
	"github.com/geoping/geoping-server/internal/database"
	"github.com/geoping/geoping-server/internal/stats"
	"github.com/geoping/geoping-server/internal/testutil"
	"github.com/geoping/geoping-server/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			stop: make(chan struct{}),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})

	t.Run("channel full drops client", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			stop: make(chan struct{}),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // fill the send channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")

		select {
		case <-c.stop:
			// client was stopped
		default:
			t.Error("expected slow client to be stopped")
		}
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{stop: make(chan struct{})}

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// a second stop must not panic
	c.stopClient()
}

func Test_authenticate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockGeoPingRepository{}, &stats.MockStatsUpdater{})

		tm := auth.NewTokenManager(testSigningKey, time.Hour)
		token, err := tm.Generate(7, "alice")
		assert.NoError(t, err)

		c := NewClient(nil, cs, cs.log)

		// drain the registration the hub would normally consume
		go func() {
			<-cs.RegisterChan
		}()

		c.authenticate(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Auth:        &Auth{Token: token},
		})

		assert.True(t, c.authenticated, "expected client to be authenticated")
		assert.Equal(t, 7, c.user.Id, "expected user id from token")
		assert.Equal(t, "alice", c.user.Username, "expected username from token")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected auth response")
			assert.Equal(t, 200, msg.Response.ResponseCode)
			assert.Equal(t, 7, msg.Response.Data["user_id"])
		default:
			t.Error("expected auth response to be queued")
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockGeoPingRepository{}, &stats.MockStatsUpdater{})
		c := NewClient(nil, cs, cs.log)

		c.authenticate(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Auth:        &Auth{Token: "garbage"},
		})

		assert.False(t, c.authenticated, "expected client to stay unauthenticated")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected auth error response")
			assert.Equal(t, 401, msg.Response.ResponseCode)
		default:
			t.Error("expected auth error to be queued")
		}
	})
}

func Test_leaveAllChannels(t *testing.T) {
	c := &Client{
		user:     types.User{Id: 1, Username: "alice"},
		channels: make(map[string]*Channel),
		log:      testutil.TestLogger(t),
	}

	ch1 := &Channel{roomId: "room_aaa111", leaveChan: make(chan *ClientMessage, 1)}
	ch2 := &Channel{roomId: "room_bbb222", leaveChan: make(chan *ClientMessage, 1)}
	c.channels[ch1.roomId] = ch1
	c.channels[ch2.roomId] = ch2

	c.leaveAllChannels()

	for _, ch := range []*Channel{ch1, ch2} {
		select {
		case msg := <-ch.leaveChan:
			assert.NotNil(t, msg.Leave, "expected leave message")
			assert.Equal(t, ch.roomId, msg.Leave.RoomId, "expected leave for channel %q", ch.roomId)
			assert.Equal(t, 1, msg.UserId)
		default:
			t.Errorf("expected leave message for channel %q", ch.roomId)
		}
	}
}

func Test_addChannel_getChannel_delChannel(t *testing.T) {
	c := &Client{
		channels: make(map[string]*Channel),
		log:      testutil.TestLogger(t),
	}
	ch := &Channel{roomId: "room_abc123"}

	c.addChannel(ch)
	assert.Equal(t, ch, c.getChannel("room_abc123"), "expected channel to be tracked")

	c.delChannel("room_abc123")
	assert.Nil(t, c.getChannel("room_abc123"), "expected channel to be removed")
}

func Test_leaveChannel_unknownRoom(t *testing.T) {
	c := &Client{
		channels: make(map[string]*Channel),
		send:     make(chan *ServerMessage, 1),
		stop:     make(chan struct{}),
		log:      testutil.TestLogger(t),
	}

	c.leaveChannel(&ClientMessage{
		BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
		Leave:       &Leave{RoomId: "room_zzz999"},
	})

	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Response, "expected response")
		assert.Equal(t, 200, msg.Response.ResponseCode, "leaving an unjoined room is a no-op")
		assert.Equal(t, 3, msg.Id)
	default:
		t.Error("expected ack to be queued")
	}

	select {
	case <-c.stop:
		t.Error("client should not be stopped by an unjoined leave")
	default:
	}
}

func Test_cleanup_afterShutdown(t *testing.T) {
	cs := &ChatServer{
		deRegisterChan: make(chan *Client),
		done:           make(chan struct{}),
	}
	close(cs.done)

	c := &Client{
		chatServer:    cs,
		channels:      make(map[string]*Channel),
		authenticated: true,
		user:          types.User{Id: 1, Username: "bob"},
		stop:          make(chan struct{}),
		log:           testutil.TestLogger(t),
	}

	finished := make(chan struct{})
	go func() {
		c.cleanup()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("cleanup must not block once the hub has exited")
	}
}
