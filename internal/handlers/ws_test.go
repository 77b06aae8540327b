// internal/handlers/ws_test.go
package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommasop/stima/internal/game"
	"github.com/tommasop/stima/internal/models"
	"github.com/tommasop/stima/internal/session"
)

// frame is the union of every outbound payload, for decoding in tests.
type frame struct {
	Type     string            `json:"type"`
	Identity *uuid.UUID        `json:"identity"`
	Token    string            `json:"token"`
	RoomCode string            `json:"roomCode"`
	Reason   string            `json:"reason"`
	Round    int               `json:"round"`
	Hand     []models.Card     `json:"hand"`
	Leader   *uuid.UUID        `json:"leader"`
	Actor    *uuid.UUID        `json:"actor"`
	Bids     map[uuid.UUID]int `json:"bids"`
	Deltas   map[uuid.UUID]int `json:"deltas"`
	Scores   map[uuid.UUID]int `json:"scores"`
	State    *game.RoomView    `json:"state"`
}

// client couples an out queue with the session the dispatcher bound to it.
type client struct {
	out  chan []byte
	sess *session.Session
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	require.NoError(t, session.InitTokens())
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	sessions := session.NewRegistry(time.Minute, logger)
	return NewServer(logger, sessions)
}

func (c *client) send(srv *Server, msg Message) {
	c.sess = srv.HandleMessage(c.sess, c.out, msg)
}

// next pops the next queued frame; all dispatch is synchronous so anything
// due is already enqueued.
func (c *client) next(t *testing.T) frame {
	t.Helper()
	select {
	case data := <-c.out:
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	default:
		t.Fatal("expected a queued frame")
		return frame{}
	}
}

// nextOfType discards frames until one of the wanted type arrives.
func (c *client) nextOfType(t *testing.T, typ string) frame {
	t.Helper()
	for {
		select {
		case data := <-c.out:
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			if f.Type == typ {
				return f
			}
		default:
			t.Fatalf("no queued frame of type %s", typ)
			return frame{}
		}
	}
}

func (c *client) drain() {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}

func register(t *testing.T, srv *Server, name string) (*client, frame) {
	t.Helper()
	c := &client{out: session.NewOutbound()}
	c.send(srv, Message{Type: "register", Name: name})
	ack := c.next(t)
	require.Equal(t, "registered", ack.Type)
	require.NotNil(t, ack.Identity)
	require.NotEmpty(t, ack.Token)
	return c, ack
}

func TestRegisterRequiresName(t *testing.T) {
	srv := newTestServer(t)
	c := &client{out: session.NewOutbound()}
	c.send(srv, Message{Type: "register"})
	f := c.next(t)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "malformed_message", f.Reason)
	assert.Nil(t, c.sess)
}

func TestActionsBeforeRegisterRejected(t *testing.T) {
	srv := newTestServer(t)
	c := &client{out: session.NewOutbound()}
	c.send(srv, Message{Type: "create_room", Capacity: 2})
	f := c.next(t)
	assert.Equal(t, string(game.EventActionRejected), f.Type)
	assert.Equal(t, models.ErrUnknownIdentity.Kind, f.Reason)
}

func TestRoomLifecycleOverMessages(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")
	bob, _ := register(t, srv, "bob")

	alice.send(srv, Message{Type: "create_room", Capacity: 2})
	created := alice.next(t)
	require.Equal(t, "room_created", created.Type)
	code := created.RoomCode
	require.Len(t, code, 5)

	bob.send(srv, Message{Type: "join_room", RoomCode: "ZZZZ9"})
	rejected := bob.next(t)
	assert.Equal(t, string(game.EventActionRejected), rejected.Type)
	assert.Equal(t, models.ErrRoomNotFound.Kind, rejected.Reason)

	bob.send(srv, Message{Type: "join_room", RoomCode: code})
	joined := bob.next(t)
	assert.Equal(t, "room_joined", joined.Type)
	assert.Equal(t, code, joined.RoomCode)
}

func TestFullRoundOverMessages(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")
	bob, _ := register(t, srv, "bob")

	alice.send(srv, Message{Type: "create_room", Capacity: 2})
	code := alice.next(t).RoomCode
	bob.send(srv, Message{Type: "join_room", RoomCode: code})
	bob.next(t)

	alice.send(srv, Message{Type: "ready"})
	bob.send(srv, Message{Type: "ready"})

	aliceStart := alice.nextOfType(t, string(game.EventRoundStarted))
	bobStart := bob.nextOfType(t, string(game.EventRoundStarted))
	require.Len(t, aliceStart.Hand, 1)
	require.Len(t, bobStart.Hand, 1)
	require.NotNil(t, aliceStart.Leader)

	one := 1
	alice.send(srv, Message{Type: "place_bid", Bid: &one})
	bob.send(srv, Message{Type: "place_bid", Bid: &one})
	all := alice.nextOfType(t, string(game.EventAllBidsRecorded))
	assert.Len(t, all.Bids, 2)

	// Play in declared order: the leader acts first.
	leader, follower := alice, bob
	leaderCard, followerCard := aliceStart.Hand[0], bobStart.Hand[0]
	if *aliceStart.Leader == bob.sess.ID {
		leader, follower = bob, alice
		leaderCard, followerCard = bobStart.Hand[0], aliceStart.Hand[0]
	}
	// Out-of-turn play is rejected without touching state.
	zero := 0
	follower.drain()
	follower.send(srv, Message{Type: "play_card", Suit: string(followerCard.Suit), Rank: string(followerCard.Rank), HandIndex: &zero})
	rej := follower.nextOfType(t, string(game.EventActionRejected))
	assert.Equal(t, models.ErrNotYourTurn.Kind, rej.Reason)

	leader.send(srv, Message{Type: "play_card", Suit: string(leaderCard.Suit), Rank: string(leaderCard.Rank), HandIndex: &zero})
	follower.send(srv, Message{Type: "play_card", Suit: string(followerCard.Suit), Rank: string(followerCard.Rank), HandIndex: &zero})

	finished := alice.nextOfType(t, string(game.EventRoundFinished))
	assert.Len(t, finished.Deltas, 2)
	assert.Len(t, finished.Scores, 2)
}

func TestReconnectReturnsRoomState(t *testing.T) {
	srv := newTestServer(t)
	alice, aliceAck := register(t, srv, "alice")
	bob, _ := register(t, srv, "bob")

	alice.send(srv, Message{Type: "create_room", Capacity: 2})
	code := alice.next(t).RoomCode
	bob.send(srv, Message{Type: "join_room", RoomCode: code})
	bob.next(t)
	alice.send(srv, Message{Type: "ready"})
	bob.send(srv, Message{Type: "ready"})

	// Alice drops and comes back within the grace window.
	srv.Sessions.Disconnect(alice.sess.ID, alice.out)
	fresh := &client{out: session.NewOutbound()}
	fresh.send(srv, Message{Type: "reconnect", Token: aliceAck.Token})
	ack := fresh.next(t)
	require.Equal(t, "reconnected", ack.Type)
	assert.Equal(t, code, ack.RoomCode)

	sync := fresh.next(t)
	require.Equal(t, string(game.EventSyncState), sync.Type)
	require.NotNil(t, sync.State, "reconnect is followed by a full resync")
	assert.Equal(t, code, sync.State.RoomCode)
	assert.Len(t, sync.State.YourHand, 1)

	// A bad token is an unknown identity.
	stranger := &client{out: session.NewOutbound()}
	stranger.send(srv, Message{Type: "reconnect", Token: "garbage"})
	f := stranger.next(t)
	assert.Equal(t, string(game.EventActionRejected), f.Type)
	assert.Equal(t, models.ErrUnknownIdentity.Kind, f.Reason)
}

// An elapsed grace window evicts the identity from its room: the remaining
// occupant is notified, the engine drops the player, and once the room empties
// the engine itself is torn down.
func TestPurgeEvictsNotifiesAndTearsDown(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")
	bob, _ := register(t, srv, "bob")

	alice.send(srv, Message{Type: "create_room", Capacity: 2})
	code := alice.next(t).RoomCode
	bob.send(srv, Message{Type: "join_room", RoomCode: code})
	bob.next(t)
	alice.send(srv, Message{Type: "ready"})
	bob.send(srv, Message{Type: "ready"})
	bob.drain()

	srv.Sessions.OnPurge(alice.sess.ID, code)

	// With one player left the match cannot continue and ends on current
	// scores before the departure notice goes out.
	over := bob.nextOfType(t, string(game.EventGameOver))
	assert.Len(t, over.Scores, 1, "only the remaining player is scored")

	gone := bob.nextOfType(t, string(game.EventOpponentDisconnected))
	require.NotNil(t, gone.Actor)
	assert.Equal(t, alice.sess.ID, *gone.Actor)

	r, ok := srv.Rooms.Get(code)
	require.True(t, ok, "the room survives while an occupant remains")
	assert.Equal(t, []uuid.UUID{bob.sess.ID}, r.Members)

	// The last occupant's purge empties the room: engine and room both go.
	srv.Sessions.OnPurge(bob.sess.ID, code)
	_, ok = srv.Rooms.Get(code)
	assert.False(t, ok)
	_, ok = srv.Games.Get(code)
	assert.False(t, ok)
}

func TestMalformedBidAndCardRejectedAtEdge(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")

	alice.send(srv, Message{Type: "place_bid"})
	f := alice.next(t)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "malformed_message", f.Reason)

	neg := -2
	alice.send(srv, Message{Type: "place_bid", Bid: &neg})
	f = alice.next(t)
	assert.Equal(t, "malformed_message", f.Reason)

	idx := 0
	alice.send(srv, Message{Type: "play_card", Suit: "X", Rank: "9", HandIndex: &idx})
	f = alice.next(t)
	assert.Equal(t, "malformed_message", f.Reason)
}
