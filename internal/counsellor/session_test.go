// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/reveal"
	"github.com/jeranaias/counsellor/internal/storage"
	"github.com/jeranaias/counsellor/internal/voice"
)

// =============================================================================
// HARNESS
// =============================================================================

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) reveals(localID string) []RevealEvent {
	var out []RevealEvent
	for _, e := range l.all() {
		if r, ok := e.(RevealEvent); ok && r.LocalID == localID {
			out = append(out, r)
		}
	}
	return out
}

func (l *eventLog) notices() []string {
	var out []string
	for _, e := range l.all() {
		if n, ok := e.(NoticeEvent); ok {
			out = append(out, n.Message)
		}
	}
	return out
}

func (l *eventLog) lastInput() (string, bool) {
	events := l.all()
	for i := len(events) - 1; i >= 0; i-- {
		if in, ok := events[i].(InputEvent); ok {
			return in.Text, true
		}
	}
	return "", false
}

type harness struct {
	session *Session
	svc     *storage.SQLiteService
	events  *eventLog
	hits    *int32
	creates *int32
}

type option func(*Config)

func withToken(token string) option {
	return func(c *Config) {
		client := c.Chat.(*api.Client)
		c.Chat = api.NewClient(&api.ClientConfig{BaseURL: client.BaseURL()}, api.StaticToken(token))
	}
}

func withSendTimeout(d time.Duration) option {
	return func(c *Config) { c.SendTimeout = d }
}

func newHarness(t *testing.T, handler http.HandlerFunc, opts ...option) *harness {
	t.Helper()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return newHarnessAt(t, srv.URL, &hits, opts...)
}

func newHarnessAt(t *testing.T, baseURL string, hits *int32, opts ...option) *harness {
	t.Helper()

	svc, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "counsellor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	counting := &creationCounter{Service: svc}
	events := &eventLog{}
	cfg := Config{
		Chat:   api.NewClient(&api.ClientConfig{BaseURL: baseURL}, api.StaticToken("tok")),
		Store:  storage.NewAdapter(counting, "user-1", nil),
		Reveal: reveal.New(reveal.WithTick(time.Millisecond)),
		Notify: events.add,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &harness{session: s, svc: svc, events: events, hits: hits, creates: &counting.creates}
}

type creationCounter struct {
	storage.Service
	creates int32
}

func (c *creationCounter) CreateConversation(ctx context.Context, userID, title string) (model.Conversation, error) {
	atomic.AddInt32(&c.creates, 1)
	return c.Service.CreateConversation(ctx, userID, title)
}

func reply(text string, actions ...model.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{Response: text, Actions: actions})
	}
}

func status(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(body))
	}
}

func (h *harness) storedMessages(t *testing.T) []model.Message {
	t.Helper()
	h.session.Drain()
	convs, err := h.svc.ListConversations(context.Background(), "user-1")
	require.NoError(t, err)
	if len(convs) == 0 {
		return nil
	}
	msgs, err := h.svc.ListMessages(context.Background(), convs[0].ID)
	require.NoError(t, err)
	return msgs
}

// =============================================================================
// SEND PIPELINE
// =============================================================================

func TestSend_DeliveredScenario(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		reply("Here are three options...", model.Action{
			Type:   "shortlist_university",
			Args:   map[string]any{},
			Result: "ok",
		})(w, r)
	})

	state, err := h.session.Send(context.Background(), "Recommend universities for my profile")
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, state)

	body := <-bodies
	assert.Contains(t, body, "conversation_id")
	assert.Nil(t, body["conversation_id"])

	msgs := h.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Actions, 1)
	assert.Equal(t, "Shortlisted", msgs[1].Actions[0].Label())

	stored := h.storedMessages(t)
	require.Len(t, stored, 2)
	assert.Equal(t, "Recommend universities for my profile", stored[0].Content)
	assert.Equal(t, model.RoleUser, stored[0].Role)
	assert.Equal(t, "Here are three options...", stored[1].Content)
	assert.Equal(t, model.RoleAssistant, stored[1].Role)
	assert.Equal(t, int32(1), atomic.LoadInt32(h.creates))

	st := h.session.Status()
	assert.Equal(t, model.ServerReady, st.State)
	assert.Zero(t, st.RetryCount)
}

func TestSend_RevealsReply(t *testing.T) {
	h := newHarness(t, reply("Hi!"))

	_, err := h.session.Send(context.Background(), "hello")
	require.NoError(t, err)

	last, ok := h.session.transcript.Last()
	require.True(t, ok)

	require.Eventually(t, func() bool {
		rs := h.events.reveals(last.LocalID)
		return len(rs) > 0 && rs[len(rs)-1].Done
	}, 2*time.Second, 5*time.Millisecond)

	rs := h.events.reveals(last.LocalID)
	var prefixes []string
	for _, r := range rs {
		if !r.Done {
			prefixes = append(prefixes, r.Text)
		}
	}
	assert.Equal(t, []string{"H", "Hi", "Hi!"}, prefixes)
	assert.Equal(t, "Hi!", rs[len(rs)-1].Text)
	assert.Eventually(t, func() bool { return !h.session.Revealing() }, time.Second, time.Millisecond)
}

func TestSend_SecondConversationReusesID(t *testing.T) {
	var ids []any
	var mu sync.Mutex
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		ids = append(ids, body["conversation_id"])
		mu.Unlock()
		reply("ok")(w, r)
	})

	_, err := h.session.Send(context.Background(), "first")
	require.NoError(t, err)
	h.session.Drain()
	active := h.session.ActiveConversation()
	require.NotEmpty(t, active)

	_, err = h.session.Send(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(h.creates))
	assert.Len(t, h.storedMessages(t), 4)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 2)
	assert.Nil(t, ids[0])
	assert.Equal(t, active, ids[1])
}

func TestSend_NoSendNoConversation(t *testing.T) {
	h := newHarness(t, reply("unused"))

	_, err := h.session.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	h.session.Drain()
	assert.Zero(t, atomic.LoadInt32(h.creates))
	assert.Zero(t, atomic.LoadInt32(h.hits))
	assert.Equal(t, StateIdle, h.session.State())
}

func TestSend_Serialized(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		reply("done")(w, r)
	})

	result := make(chan State, 1)
	go func() {
		state, _ := h.session.Send(context.Background(), "one")
		result <- state
	}()
	require.Eventually(t, h.session.Sending, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		state, err := h.session.Send(context.Background(), "burst")
		assert.ErrorIs(t, err, ErrSendInFlight)
		assert.Equal(t, StateSending, state)
	}

	h.session.SetInput("typed meanwhile")
	_, err := h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSendInFlight)
	assert.Equal(t, "typed meanwhile", h.session.Input())

	_, err = h.session.Retry(context.Background())
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	assert.Equal(t, StateDelivered, <-result)

	var users int
	for _, m := range h.session.Messages() {
		if m.IsUser() {
			users++
		}
	}
	assert.Equal(t, 1, users)
	assert.Equal(t, int32(1), atomic.LoadInt32(h.hits))
}

func TestSubmit_ClearsInput(t *testing.T) {
	h := newHarness(t, reply("ok"))

	h.session.SetInput("  hello there  ")
	state, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, state)
	assert.Empty(t, h.session.Input())

	msgs := h.session.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "hello there", msgs[0].Content)

	h.session.SetInput(" \n ")
	_, err = h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, " \n ", h.session.Input())
}

// =============================================================================
// WAKING AND FAILURE
// =============================================================================

func assertWaking(t *testing.T, h *harness, state State) {
	t.Helper()
	assert.Equal(t, StateWaking, state)

	st := h.session.Status()
	assert.True(t, st.Waking)
	assert.Equal(t, model.ServerWaking, st.State)
	assert.Equal(t, 1, st.RetryCount)
	assert.NotEmpty(t, st.Message)

	msgs := h.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestSend_WakingOutcomesAreIdentical(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
			// The server only sees the client hang up once the body is read.
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, withSendTimeout(50*time.Millisecond))
		defer close(release)

		state, err := h.session.Send(context.Background(), "Recommend universities for my profile")
		require.NoError(t, err)
		assertWaking(t, h, state)
		assert.Equal(t, health.WakingMessage, h.session.Status().Message)

		// The user message was persisted before the call.
		assert.Len(t, h.storedMessages(t), 1)
		assert.Equal(t, int32(1), atomic.LoadInt32(h.creates))
	})

	t.Run("503", func(t *testing.T) {
		h := newHarness(t, status(http.StatusServiceUnavailable, `{}`))
		state, err := h.session.Send(context.Background(), "hello")
		require.NoError(t, err)
		assertWaking(t, h, state)
	})

	t.Run("502 with detail", func(t *testing.T) {
		h := newHarness(t, status(http.StatusBadGateway, `{"detail":{"message":"Model loading"}}`))
		state, err := h.session.Send(context.Background(), "hello")
		require.NoError(t, err)
		assertWaking(t, h, state)
		assert.Equal(t, "Model loading", h.session.Status().Message)
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		var hits int32
		h := newHarnessAt(t, url, &hits)
		state, err := h.session.Send(context.Background(), "hello")
		require.NoError(t, err)
		assertWaking(t, h, state)
	})
}

func TestSend_WakingCounterMerges(t *testing.T) {
	h := newHarness(t, status(http.StatusServiceUnavailable, `{}`))

	for i := 0; i < 3; i++ {
		_, err := h.session.Retry(context.Background())
		if i == 0 {
			assert.ErrorIs(t, err, ErrNothingToRetry)
			_, err = h.session.Send(context.Background(), "hello")
		}
		require.NoError(t, err)
	}

	st := h.session.Status()
	assert.Equal(t, 3, st.RetryCount)
	assert.True(t, st.ShowManualRetry())
	assert.Len(t, h.session.Messages(), 1)
}

func TestSend_StartClearsPreviousStatusMessage(t *testing.T) {
	var calls int32
	var h *harness
	during := make(chan model.ServerStatus, 1)
	h = newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			status(http.StatusBadGateway, `{"detail":{"message":"Model loading"}}`)(w, r)
			return
		}
		during <- h.session.Status()
		reply("Ready now")(w, r)
	})

	state, err := h.session.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, StateWaking, state)
	assert.Equal(t, "Model loading", h.session.Status().Message)

	state, err = h.session.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, state)

	st := <-during
	assert.Empty(t, st.Message)
	assert.True(t, st.Waking, "clearing the message keeps the waking state")
	assert.Equal(t, 1, st.RetryCount)
}

func TestRetry_ReplaysLastUserMessage(t *testing.T) {
	var calls int32
	var got []string
	var mu sync.Mutex
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body["message"].(string))
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			status(http.StatusServiceUnavailable, `{}`)(w, r)
			return
		}
		reply("Welcome back")(w, r)
	})

	h.session.SetInput("What are my chances at top schools?")
	state, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateWaking, state)
	assert.True(t, state.CanRetry())

	h.session.SetInput("something else entirely")
	state, err = h.session.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, state)

	mu.Lock()
	assert.Equal(t, []string{"What are my chances at top schools?", "What are my chances at top schools?"}, got)
	mu.Unlock()

	msgs := h.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Welcome back", msgs[1].Content)

	stored := h.storedMessages(t)
	require.Len(t, stored, 2, "retry does not persist the user message again")
	assert.Equal(t, 0, h.session.Status().RetryCount)
}

func TestSend_FailedAppendsFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		notice  string
	}{
		{"500 with detail", status(http.StatusInternalServerError, `{"detail":"Profile incomplete"}`), "Profile incomplete"},
		{"404", status(http.StatusNotFound, `not json`), ""},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{broken")) }, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.handler)

			state, err := h.session.Send(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, StateFailed, state)

			msgs := h.session.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, FallbackReply, msgs[1].Content)
			assert.False(t, h.session.Status().Waking)

			stored := h.storedMessages(t)
			require.Len(t, stored, 2)
			assert.Equal(t, FallbackReply, stored[1].Content)

			if tc.notice != "" {
				var notices []string
				for _, e := range h.events.all() {
					if se, ok := e.(StateEvent); ok && se.State == StateFailed {
						notices = append(notices, se.Notice)
					}
				}
				assert.Equal(t, []string{tc.notice}, notices)
			}
		})
	}
}

func TestSend_WithoutCredentialRefusedLocally(t *testing.T) {
	h := newHarness(t, reply("unused"), withToken(""))

	state, err := h.session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Zero(t, atomic.LoadInt32(h.hits))
	assert.Empty(t, h.session.Messages())

	h.session.Drain()
	assert.Zero(t, atomic.LoadInt32(h.creates))

	var sawNotice bool
	for _, e := range h.events.all() {
		if se, ok := e.(StateEvent); ok && se.Notice == SignInNotice {
			sawNotice = true
		}
	}
	assert.True(t, sawNotice)
	assert.False(t, h.session.Sending())
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversations_SelectNewDelete(t *testing.T) {
	h := newHarness(t, reply("answer"))

	_, err := h.session.Send(context.Background(), "first conversation")
	require.NoError(t, err)
	h.session.Drain()
	first := h.session.ActiveConversation()

	require.NoError(t, h.session.NewConversation())
	assert.Empty(t, h.session.Messages())
	assert.Empty(t, h.session.ActiveConversation())
	assert.Equal(t, StateIdle, h.session.State())

	_, err = h.session.Send(context.Background(), "second conversation")
	require.NoError(t, err)
	h.session.Drain()
	second := h.session.ActiveConversation()
	assert.NotEqual(t, first, second)

	convs, err := h.session.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second, convs[0].ID)

	require.NoError(t, h.session.Select(context.Background(), first))
	msgs := h.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first conversation", msgs[0].Content)
	for _, m := range msgs {
		assert.True(t, m.IsPersisted())
	}

	require.NoError(t, h.session.Rename(context.Background(), first, "Shortlist ideas"))
	convs, err = h.session.Conversations(context.Background())
	require.NoError(t, err)
	var titles []string
	for _, c := range convs {
		titles = append(titles, c.Title)
	}
	assert.Contains(t, titles, "Shortlist ideas")

	require.NoError(t, h.session.Delete(context.Background(), first))
	assert.Empty(t, h.session.ActiveConversation())
	assert.Empty(t, h.session.Messages())

	require.NoError(t, h.session.Delete(context.Background(), second))
	convs, err = h.session.Conversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestResume_LoadsMostRecent(t *testing.T) {
	h := newHarness(t, reply("answer"))

	_, err := h.session.Send(context.Background(), "older")
	require.NoError(t, err)
	h.session.Drain()
	id := h.session.ActiveConversation()
	require.NoError(t, h.session.NewConversation())

	require.NoError(t, h.session.Resume(context.Background()))
	assert.Equal(t, id, h.session.ActiveConversation())
	assert.Len(t, h.session.Messages(), 2)
}

func TestResume_WaitsForProber(t *testing.T) {
	h := newHarness(t, reply("answer"))
	checker := &stubChecker{}
	h.session.prober = health.New(checker, h.session.tracker, health.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.session.Resume(ctx), context.DeadlineExceeded)

	h.session.prober.Probe(context.Background())
	require.NoError(t, h.session.Resume(context.Background()))
	assert.Equal(t, model.ServerReady, h.session.Status().State)
}

type stubChecker struct{}

func (stubChecker) Health(context.Context) error { return nil }

// =============================================================================
// VOICE
// =============================================================================

type lease struct {
	chunks chan []byte
	once   sync.Once
}

func (l *lease) Chunks() <-chan []byte { return l.chunks }
func (l *lease) Err() error            { return nil }
func (l *lease) Close() error {
	l.once.Do(func() { close(l.chunks) })
	return nil
}

type device struct{ err error }

func (d device) Open(context.Context) (voice.Lease, error) {
	if d.err != nil {
		return nil, d.err
	}
	l := &lease{chunks: make(chan []byte, 1)}
	l.chunks <- []byte("pcm")
	return l, nil
}

type stt struct{ text string }

func (s stt) Transcribe(context.Context, []byte, string) (string, error) { return s.text, nil }

type tts struct{}

func (tts) Synthesize(_ context.Context, text string) (*api.Audio, error) {
	return &api.Audio{Data: []byte(text), ContentType: "audio/mpeg"}, nil
}

type stream struct {
	done chan struct{}
	once sync.Once
}

func (s *stream) Done() <-chan struct{} { return s.done }
func (s *stream) Stop()                 { s.once.Do(func() { close(s.done) }) }

type player struct {
	mu      sync.Mutex
	streams []*stream
}

func (p *player) Play(context.Context, *api.Audio) (voice.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &stream{done: make(chan struct{})}
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *player) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.streams {
		select {
		case <-s.done:
		default:
			n++
		}
	}
	return n
}

func TestToggleRecording_AppendsToInput(t *testing.T) {
	h := newHarness(t, reply("ok"), func(c *Config) {
		c.Device = device{}
		c.STT = stt{text: "my GPA is 3.8"}
	})
	h.session.SetInput("Hello,")

	recording, err := h.session.ToggleRecording(context.Background())
	require.NoError(t, err)
	assert.True(t, recording)
	assert.True(t, h.session.Recording())

	recording, err = h.session.ToggleRecording(context.Background())
	require.NoError(t, err)
	assert.False(t, recording)

	require.Eventually(t, func() bool {
		text, ok := h.events.lastInput()
		return ok && text == "Hello, my GPA is 3.8"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hello, my GPA is 3.8", h.session.Input())
}

func TestToggleRecording_PermissionDenied(t *testing.T) {
	h := newHarness(t, reply("ok"), func(c *Config) {
		c.Device = device{err: voice.ErrPermissionDenied}
		c.STT = stt{}
	})

	recording, err := h.session.ToggleRecording(context.Background())
	assert.ErrorIs(t, err, voice.ErrPermissionDenied)
	assert.False(t, recording)
	require.Len(t, h.events.notices(), 1)
	assert.Contains(t, h.events.notices()[0], "Microphone access denied")
}

func TestVoiceUnavailable(t *testing.T) {
	h := newHarness(t, reply("ok"))

	_, err := h.session.ToggleRecording(context.Background())
	assert.ErrorIs(t, err, ErrVoiceUnavailable)
	assert.ErrorIs(t, h.session.Speak(context.Background(), "x"), ErrVoiceUnavailable)
	assert.False(t, h.session.VoiceInput())
	assert.False(t, h.session.VoiceOutput())
}

func TestSpeak_ToggleSurvivesServerID(t *testing.T) {
	p := &player{}
	h := newHarness(t, reply("an answer"), func(c *Config) {
		c.TTS = tts{}
		c.Player = p
	})

	_, err := h.session.Send(context.Background(), "one")
	require.NoError(t, err)
	last, ok := lastAssistant(h.session.Messages())
	require.True(t, ok)

	require.NoError(t, h.session.Speak(context.Background(), last.Key()))
	assert.Equal(t, last.LocalID, h.session.Speaking())

	// Persistence back-fills the server ID while the reply is playing.
	h.session.Drain()
	persisted, ok := lastAssistant(h.session.Messages())
	require.True(t, ok)
	require.NotEmpty(t, persisted.ID)
	require.NotEqual(t, persisted.LocalID, persisted.Key())
	assert.Equal(t, last.LocalID, h.session.Speaking())

	require.NoError(t, h.session.Speak(context.Background(), persisted.Key()))
	assert.Empty(t, h.session.Speaking())
	assert.Equal(t, 0, p.active())
}

func lastAssistant(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

func TestSpeak_ExclusiveAndStoppedOnSwitch(t *testing.T) {
	p := &player{}
	h := newHarness(t, reply("an answer"), func(c *Config) {
		c.TTS = tts{}
		c.Player = p
	})

	_, err := h.session.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = h.session.Send(context.Background(), "two")
	require.NoError(t, err)

	var replies []model.Message
	for _, m := range h.session.Messages() {
		if m.IsAssistant() {
			replies = append(replies, m)
		}
	}
	require.Len(t, replies, 2)
	a, b := replies[0].LocalID, replies[1].LocalID

	require.NoError(t, h.session.Speak(context.Background(), a))
	assert.Equal(t, a, h.session.Speaking())

	require.NoError(t, h.session.Speak(context.Background(), b))
	assert.Equal(t, b, h.session.Speaking())
	assert.Equal(t, 1, p.active())

	require.NoError(t, h.session.Speak(context.Background(), b))
	assert.Empty(t, h.session.Speaking())
	assert.Equal(t, 0, p.active())

	require.NoError(t, h.session.Speak(context.Background(), a))
	require.NoError(t, h.session.NewConversation())
	assert.Empty(t, h.session.Speaking())
	assert.Equal(t, 0, p.active())

	assert.ErrorIs(t, h.session.Speak(context.Background(), a), ErrUnknownMessage)
}
