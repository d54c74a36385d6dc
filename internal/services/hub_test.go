package services_test

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thethetrader/thethetrader-sub001/internal/models"
	"github.com/Thethetrader/thethetrader-sub001/internal/services"
)

// recvMsg keeps the payload raw so each test decodes the shape it expects.
type recvMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// fakeSession stands in for a *services.Client so the relay can be driven
// without a transport.
type fakeSession struct {
	id   string
	fail bool

	mu   sync.Mutex
	msgs []recvMsg
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(data []byte) bool {
	if f.fail {
		return false
	}

	var msg recvMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeSession) received(msgType string) []recvMsg {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recvMsg
	for _, m := range f.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func newTestHub() (*services.Hub, *services.ConnectionRegistry, *services.StreamRegistry) {
	registry := services.NewConnectionRegistry()
	streams := services.NewStreamRegistry()
	return services.NewHub(registry, streams, zerolog.Nop()), registry, streams
}

func connect(h *services.Hub, id string) *fakeSession {
	s := &fakeSession{id: id}
	h.Register(s)
	return s
}

func join(h *services.Hub, s *fakeSession, username string) {
	h.Dispatch(s, []byte(fmt.Sprintf(`{"type":"join-live","payload":{"username":%q}}`, username)))
}

func TestHub_Join(t *testing.T) {
	t.Run("first joiner gets an empty roster snapshot", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")

		join(h, alice, "alice")

		lists := alice.received(models.EventParticipants)
		require.Len(t, lists, 1)

		var roster []*models.Participant
		require.NoError(t, json.Unmarshal(lists[0].Payload, &roster))
		assert.Empty(t, roster)

		// The joiner never sees its own user-joined
		assert.Empty(t, alice.received(models.EventUserJoined))
	})

	t.Run("existing participants see the joiner with the full roster", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")

		join(h, bob, "bob")

		joins := alice.received(models.EventUserJoined)
		require.Len(t, joins, 1)

		var p models.UserJoinedPayload
		require.NoError(t, json.Unmarshal(joins[0].Payload, &p))
		assert.Equal(t, "conn-b", p.ID)
		assert.Equal(t, "bob", p.Username)
		require.Len(t, p.Participants, 2)
		assert.Equal(t, "alice", p.Participants[0].Username)
		assert.Equal(t, "bob", p.Participants[1].Username)

		// Bob's own snapshot is the roster before his insertion
		lists := bob.received(models.EventParticipants)
		require.Len(t, lists, 1)
		var roster []*models.Participant
		require.NoError(t, json.Unmarshal(lists[0].Payload, &roster))
		require.Len(t, roster, 1)
		assert.Equal(t, "alice", roster[0].Username)
	})

	t.Run("join without a username proceeds with the empty string", func(t *testing.T) {
		h, registry, _ := newTestHub()
		s := connect(h, "conn-a")

		h.Dispatch(s, []byte(`{"type":"join-live","payload":{}}`))

		p, ok := registry.Get("conn-a")
		require.True(t, ok)
		assert.Equal(t, "", p.Username)
	})
}

func TestHub_SignalingRelay(t *testing.T) {
	t.Run("offer excludes sender, reaches everyone else once", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		carol := connect(h, "conn-c")
		join(h, alice, "alice")
		join(h, bob, "bob")
		join(h, carol, "carol")

		h.Dispatch(alice, []byte(`{"type":"offer","payload":{"offer":{"sdp":"v=0","type":"offer"}}}`))

		assert.Empty(t, alice.received(models.EventOffer))
		for _, peer := range []*fakeSession{bob, carol} {
			offers := peer.received(models.EventOffer)
			require.Len(t, offers, 1, "peer %s", peer.id)

			var relay models.OfferRelay
			require.NoError(t, json.Unmarshal(offers[0].Payload, &relay))
			assert.Equal(t, "conn-a", relay.From)
			assert.JSONEq(t, `{"sdp":"v=0","type":"offer"}`, string(relay.Offer))
		}
	})

	t.Run("answer and ice-candidate follow the same policy", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")
		join(h, bob, "bob")

		h.Dispatch(bob, []byte(`{"type":"answer","payload":{"answer":{"sdp":"v=0"}}}`))
		h.Dispatch(bob, []byte(`{"type":"ice-candidate","payload":{"candidate":{"candidate":"foo"}}}`))

		assert.Empty(t, bob.received(models.EventAnswer))
		assert.Empty(t, bob.received(models.EventICECandidate))

		answers := alice.received(models.EventAnswer)
		require.Len(t, answers, 1)
		var a models.AnswerRelay
		require.NoError(t, json.Unmarshal(answers[0].Payload, &a))
		assert.Equal(t, "conn-b", a.From)

		candidates := alice.received(models.EventICECandidate)
		require.Len(t, candidates, 1)
		var c models.CandidateRelay
		require.NoError(t, json.Unmarshal(candidates[0].Payload, &c))
		assert.Equal(t, "conn-b", c.From)
	})
}

func TestHub_Chat(t *testing.T) {
	t.Run("includes sender, identical id and timestamp for everyone", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")
		join(h, bob, "bob")

		h.Dispatch(alice, []byte(`{"type":"chat-message","payload":{"message":"hi"}}`))

		aliceMsgs := alice.received(models.EventChat)
		bobMsgs := bob.received(models.EventChat)
		require.Len(t, aliceMsgs, 1)
		require.Len(t, bobMsgs, 1)

		var got, peer models.ChatMessage
		require.NoError(t, json.Unmarshal(aliceMsgs[0].Payload, &got))
		require.NoError(t, json.Unmarshal(bobMsgs[0].Payload, &peer))

		assert.Equal(t, "alice", got.User)
		assert.Equal(t, "hi", got.Message)
		assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}$`), got.Timestamp)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, got.ID, peer.ID)
		assert.Equal(t, got.Timestamp, peer.Timestamp)
	})

	t.Run("chat before join is silently dropped", func(t *testing.T) {
		h, _, _ := newTestHub()
		ghost := connect(h, "conn-g")
		alice := connect(h, "conn-a")
		join(h, alice, "alice")

		h.Dispatch(ghost, []byte(`{"type":"chat-message","payload":{"message":"boo"}}`))

		assert.Empty(t, alice.received(models.EventChat))
		assert.Empty(t, ghost.received(models.EventChat))
	})
}

func TestHub_Streams(t *testing.T) {
	t.Run("start and stop are broadcast to everyone including the actor", func(t *testing.T) {
		h, _, streams := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")
		join(h, bob, "bob")

		h.Dispatch(alice, []byte(`{"type":"start-stream","payload":{}}`))

		for _, peer := range []*fakeSession{alice, bob} {
			started := peer.received(models.EventStreamStarted)
			require.Len(t, started, 1, "peer %s", peer.id)
			var p models.StreamEventPayload
			require.NoError(t, json.Unmarshal(started[0].Payload, &p))
			assert.Equal(t, "alice", p.Streamer)
		}
		assert.Equal(t, 1, streams.Count())

		h.Dispatch(alice, []byte(`{"type":"stop-stream","payload":{}}`))

		assert.Equal(t, 0, streams.Count())
		require.Len(t, alice.received(models.EventStreamStopped), 1)
		require.Len(t, bob.received(models.EventStreamStopped), 1)
	})

	t.Run("double start keeps a single session", func(t *testing.T) {
		h, _, streams := newTestHub()
		alice := connect(h, "conn-a")
		join(h, alice, "alice")

		h.Dispatch(alice, []byte(`{"type":"start-stream","payload":{}}`))
		h.Dispatch(alice, []byte(`{"type":"start-stream","payload":{}}`))

		assert.Equal(t, 1, streams.Count())
	})

	t.Run("start-stream before join is dropped", func(t *testing.T) {
		h, _, streams := newTestHub()
		ghost := connect(h, "conn-g")

		h.Dispatch(ghost, []byte(`{"type":"start-stream","payload":{}}`))

		assert.Equal(t, 0, streams.Count())
	})
}

func TestHub_Disconnect(t *testing.T) {
	t.Run("cleans both registries and announces departure", func(t *testing.T) {
		h, registry, streams := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")
		join(h, bob, "bob")
		h.Dispatch(alice, []byte(`{"type":"start-stream","payload":{}}`))

		h.Disconnect(alice)

		_, ok := registry.Get("conn-a")
		assert.False(t, ok)
		assert.Equal(t, 0, streams.Count())

		left := bob.received(models.EventUserLeft)
		require.Len(t, left, 1)
		var p models.UserLeftPayload
		require.NoError(t, json.Unmarshal(left[0].Payload, &p))
		assert.Equal(t, "conn-a", p.ID)
		assert.Equal(t, "alice", p.Username)
		require.Len(t, p.Participants, 1)
		assert.Equal(t, "bob", p.Participants[0].Username)

		// No stream-stopped is emitted for the dropped stream
		assert.Empty(t, bob.received(models.EventStreamStopped))
	})

	t.Run("second disconnect is a no-op", func(t *testing.T) {
		h, _, _ := newTestHub()
		alice := connect(h, "conn-a")
		bob := connect(h, "conn-b")
		join(h, alice, "alice")
		join(h, bob, "bob")

		h.Disconnect(alice)
		h.Disconnect(alice)

		assert.Len(t, bob.received(models.EventUserLeft), 1)
	})

	t.Run("unjoined disconnect announces nothing", func(t *testing.T) {
		h, _, _ := newTestHub()
		ghost := connect(h, "conn-g")
		bob := connect(h, "conn-b")
		join(h, bob, "bob")

		h.Disconnect(ghost)

		assert.Empty(t, bob.received(models.EventUserLeft))
	})
}

func TestHub_FanOutIsolation(t *testing.T) {
	h, _, _ := newTestHub()
	alice := connect(h, "conn-a")
	broken := &fakeSession{id: "conn-x", fail: true}
	h.Register(broken)
	carol := connect(h, "conn-c")
	join(h, alice, "alice")
	join(h, carol, "carol")

	h.Dispatch(alice, []byte(`{"type":"chat-message","payload":{"message":"hi"}}`))

	// The broken recipient does not keep the frame from the others
	require.Len(t, alice.received(models.EventChat), 1)
	require.Len(t, carol.received(models.EventChat), 1)
}

func TestHub_MalformedInput(t *testing.T) {
	h, _, _ := newTestHub()
	alice := connect(h, "conn-a")
	bob := connect(h, "conn-b")
	join(h, alice, "alice")
	join(h, bob, "bob")

	assert.NotPanics(t, func() {
		h.Dispatch(alice, []byte(`not json`))
		h.Dispatch(alice, []byte(`{"type":"warp-drive","payload":{}}`))
		h.Dispatch(alice, []byte(`{"type":"offer","payload":"not an object"}`))
	})

	assert.Empty(t, bob.received(models.EventOffer))
}

func TestHub_UnknownEventMetricLabel(t *testing.T) {
	h, _, _ := newTestHub()
	alice := connect(h, "conn-a")
	join(h, alice, "alice")

	// Clients control the type string, so made-up types must not mint
	// new metric series.
	h.Dispatch(alice, []byte(`{"type":"warp-drive","payload":{}}`))
	h.Dispatch(alice, []byte(`{"type":"hyperspace","payload":{}}`))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	labels := map[string]bool{}
	for _, mf := range families {
		if mf.GetName() != "relay_messages_received_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "type" {
					labels[lp.GetValue()] = true
				}
			}
		}
	}

	assert.False(t, labels["warp-drive"])
	assert.False(t, labels["hyperspace"])
	assert.True(t, labels["unknown"])
}

func TestHub_Stats(t *testing.T) {
	h, _, _ := newTestHub()
	alice := connect(h, "conn-a")
	connect(h, "conn-b")
	join(h, alice, "alice")
	h.Dispatch(alice, []byte(`{"type":"start-stream","payload":{}}`))

	stats := h.Stats()

	assert.Equal(t, 2, stats.ActiveConnections)
	assert.Equal(t, 1, stats.Participants)
	assert.Equal(t, 1, stats.ActiveStreams)
	assert.GreaterOrEqual(t, stats.UptimeSeconds, int64(0))
}
