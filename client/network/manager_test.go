package network

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	frameType int
	data      []byte
}

type fakeConn struct {
	frames    chan frame
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan frame, 16),
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage(ctx context.Context) (int, []byte, error) {
	select {
	case f := <-c.frames:
		return f.frameType, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(ctx context.Context, frameType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type dialResult struct {
	url  string
	conn *fakeConn
}

type fakeDialer struct {
	lock   sync.Mutex
	fail   bool
	dialed chan dialResult
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan dialResult, 16)}
}

func (d *fakeDialer) setFail(fail bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.fail = fail
}

func (d *fakeDialer) Dial(ctx context.Context, target string) (Conn, error) {
	d.lock.Lock()
	fail := d.fail
	d.lock.Unlock()
	if fail {
		d.dialed <- dialResult{url: target}
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.dialed <- dialResult{url: target, conn: conn}
	return conn, nil
}

func (d *fakeDialer) next(t *testing.T) dialResult {
	t.Helper()
	select {
	case r := <-d.dialed:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return dialResult{}
	}
}

func (d *fakeDialer) assertNoDial(t *testing.T) {
	t.Helper()
	select {
	case r := <-d.dialed:
		t.Fatalf("unexpected dial to %s", r.url)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeTimer struct {
	clock *fakeClock
	index int
}

func (t *fakeTimer) Stop() bool {
	t.clock.lock.Lock()
	defer t.clock.lock.Unlock()
	t.clock.stopped[t.index] = true
	return true
}

// fakeClock records scheduled reconnections instead of waiting for them.
type fakeClock struct {
	lock    sync.Mutex
	delays  []time.Duration
	fns     []func()
	stopped map[int]bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{stopped: map[int]bool{}}
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timer {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.delays = append(c.delays, d)
	c.fns = append(c.fns, f)
	return &fakeTimer{clock: c, index: len(c.fns) - 1}
}

func (c *fakeClock) scheduled() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.fns)
}

func (c *fakeClock) delay(i int) time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.delays[i]
}

func (c *fakeClock) isStopped(i int) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stopped[i]
}

// fire runs the i-th scheduled function the way time.AfterFunc would.
func (c *fakeClock) fire(i int) {
	c.lock.Lock()
	f := c.fns[i]
	c.lock.Unlock()
	go f()
}

func newTestManager(dialer Dialer, credentials *auth.Observer, opts ManagerOptions) (*Manager, *fakeClock) {
	opts.Dialer = dialer
	opts.Credentials = credentials
	opts.URL = "ws://game.test/v1/ws"
	m := NewManager(opts)
	clock := newFakeClock()
	m.afterFunc = clock.afterFunc
	return m, clock
}

func waitConnected(t *testing.T, c *Connection) *Handle {
	t.Helper()
	var h *Handle
	require.Eventually(t, func() bool {
		h = c.Current()
		h.lock.Lock()
		defer h.lock.Unlock()
		return h.conn != nil
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func TestManager_ConnectTarget(t *testing.T) {
	tt := []struct {
		name     string
		playerID string
		token    string
		expected url.Values
	}{
		{
			name:     "player and token",
			playerID: "p1",
			token:    "tok-abc",
			expected: url.Values{"game_id": {"g1"}, "player_id": {"p1"}, "token": {"tok-abc"}},
		},
		{
			name:     "no player",
			token:    "tok-abc",
			expected: url.Values{"game_id": {"g1"}, "token": {"tok-abc"}},
		},
		{
			name:     "no token",
			playerID: "p1",
			expected: url.Values{"game_id": {"g1"}, "player_id": {"p1"}},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			dialer := newFakeDialer()
			m, _ := newTestManager(dialer, auth.NewObserver(tc.token), ManagerOptions{})

			c := m.Connect("g1", types.PlayerID(tc.playerID), nil)
			defer c.Close()

			u, err := url.Parse(dialer.next(t).url)
			require.NoError(t, err)
			assert.Equal(t, "/v1/ws", u.Path)
			assert.Equal(t, tc.expected, u.Query())
		})
	}
}

func TestManager_ReconnectsAfterUnexpectedClose(t *testing.T) {
	dialer := newFakeDialer()
	m, clock := newTestManager(dialer, auth.NewObserver("tok-abc"), ManagerOptions{})

	var handles []*Handle
	var handlesLock sync.Mutex
	c := m.Connect("g1", "p1", nil)
	defer c.Close()
	c.Subscribe(func(h *Handle) {
		handlesLock.Lock()
		defer handlesLock.Unlock()
		handles = append(handles, h)
	})

	first := dialer.next(t)
	h1 := waitConnected(t, c)

	first.conn.Close()
	require.Eventually(t, func() bool { return clock.scheduled() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 10*time.Second, clock.delay(0))
	dialer.assertNoDial(t)

	clock.fire(0)
	second := dialer.next(t)
	assert.Equal(t, first.url, second.url)

	h2 := waitConnected(t, c)
	assert.NotEqual(t, h1.ID(), h2.ID())
	assert.ErrorIs(t, h1.Send(messages.ClientMessage{Type: messages.ClientMessageTypeGetDeck}), ErrNotConnected)
	require.NoError(t, h2.Send(messages.ClientMessage{Type: messages.ClientMessageTypeGetDeck}))
	assert.JSONEq(t, `{"type": "GetDeck"}`, string(<-second.conn.writes))

	handlesLock.Lock()
	defer handlesLock.Unlock()
	assert.Equal(t, []*Handle{h1, h2}, handles)
}

func TestManager_ReconnectUsesCurrentToken(t *testing.T) {
	dialer := newFakeDialer()
	observer := auth.NewObserver("tok-old")
	m, clock := newTestManager(dialer, observer, ManagerOptions{})

	c := m.Connect("g1", "p1", nil)
	defer c.Close()
	first := dialer.next(t)
	waitConnected(t, c)

	observer.Publish("tok-new")
	first.conn.Close()
	require.Eventually(t, func() bool { return clock.scheduled() == 1 }, 2*time.Second, 5*time.Millisecond)
	clock.fire(0)

	u, err := url.Parse(dialer.next(t).url)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", u.Query().Get("token"))
}

func TestManager_NoReconnectAfterClose(t *testing.T) {
	dialer := newFakeDialer()
	m, clock := newTestManager(dialer, auth.NewObserver("tok-abc"), ManagerOptions{})

	c := m.Connect("g1", "p1", nil)
	first := dialer.next(t)
	h := waitConnected(t, c)

	require.NoError(t, h.Close())
	assert.True(t, first.conn.isClosed())
	require.NoError(t, c.Close())

	assert.Never(t, func() bool { return clock.scheduled() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	dialer.assertNoDial(t)

	err := c.Send(messages.ClientMessage{Type: messages.ClientMessageTypeGetDeck})
	target := &ErrConnectionClosedByClient{}
	assert.True(t, errors.As(err, &target))
}

func TestManager_CloseCancelsPendingReconnect(t *testing.T) {
	dialer := newFakeDialer()
	m, clock := newTestManager(dialer, auth.NewObserver("tok-abc"), ManagerOptions{})

	c := m.Connect("g1", "p1", nil)
	first := dialer.next(t)
	waitConnected(t, c)

	first.conn.Close()
	require.Eventually(t, func() bool { return clock.scheduled() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.True(t, clock.isStopped(0))

	// a timer that already fired must not reconnect either
	clock.fire(0)
	dialer.assertNoDial(t)
}

func TestManager_RetriesFailedDials(t *testing.T) {
	dialer := newFakeDialer()
	dialer.setFail(true)
	m, clock := newTestManager(dialer, auth.NewObserver("tok-abc"), ManagerOptions{})

	c := m.Connect("g1", "p1", nil)
	defer c.Close()

	for i := 0; i < 3; i++ {
		dialer.next(t)
		require.Eventually(t, func() bool { return clock.scheduled() == i+1 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, 10*time.Second, clock.delay(i))
		clock.fire(i)
	}

	dialer.setFail(false)
	dialer.next(t)
	waitConnected(t, c)
}

func TestManager_MaxReconnectAttempts(t *testing.T) {
	dialer := newFakeDialer()
	dialer.setFail(true)
	m, clock := newTestManager(dialer, auth.NewObserver(""), ManagerOptions{MaxReconnectAttempts: 2})

	c := m.Connect("g1", "", nil)
	defer c.Close()

	dialer.next(t)
	require.Eventually(t, func() bool { return clock.scheduled() == 1 }, 2*time.Second, 5*time.Millisecond)
	clock.fire(0)
	dialer.next(t)
	require.Eventually(t, func() bool { return clock.scheduled() == 2 }, 2*time.Second, 5*time.Millisecond)
	clock.fire(1)
	dialer.next(t)

	assert.Never(t, func() bool { return clock.scheduled() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestManager_ReconnectJitter(t *testing.T) {
	m := NewManager(ManagerOptions{ReconnectDelay: time.Second, ReconnectJitter: 500 * time.Millisecond})
	for i := 0; i < 100; i++ {
		d := m.nextDelay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}

	assert.Equal(t, DefaultReconnectDelay, NewManager(ManagerOptions{}).nextDelay())
}

func TestManager_DeliversDecodedMessages(t *testing.T) {
	dialer := newFakeDialer()
	m, _ := newTestManager(dialer, auth.NewObserver("tok-abc"), ManagerOptions{})

	received := make(chan messages.ServerMessage, 4)
	c := m.Connect("g1", "p1", func(msg messages.ServerMessage) {
		received <- msg
	})
	defer c.Close()
	conn := dialer.next(t).conn

	compressed, err := messages.Compress([]byte(`{"GameUpdate": {"id": "g1", "version": 4}}`))
	require.NoError(t, err)

	conn.frames <- frame{messages.FrameText, []byte(`{"Unrelated": {}}`)}
	conn.frames <- frame{messages.FrameText, []byte(`not json`)}
	conn.frames <- frame{messages.FrameText, []byte(`{"GameSummaryUpdate": {"id": "g1", "version": 3}}`)}
	conn.frames <- frame{messages.FrameBinary, compressed}

	first := <-received
	summaryUpdate, ok := first.(*messages.GameSummaryUpdate)
	require.True(t, ok)
	assert.Equal(t, 3, summaryUpdate.Summary.Version)

	second := <-received
	gameUpdate, ok := second.(*messages.GameUpdate)
	require.True(t, ok)
	assert.Equal(t, 4, gameUpdate.Game.Version)
}
