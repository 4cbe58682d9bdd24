package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/observerproto"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func start(t *testing.T) (*world.World, *httptest.Server, context.CancelFunc) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	require.NoError(t, err)
	tu, err := tuning.Load("../../../configs/tuning.yaml")
	require.NoError(t, err)
	w, err := world.New(world.WorldConfig{ID: "obs", Tuning: tu}, cats, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	s := NewServer(w, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, srv, cancel
}

func subscribe(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	sub.Type = observerproto.TypeSubscribe
	sub.ProtocolVersion = observerproto.Version
	require.NoError(t, conn.WriteJSON(sub))
	return conn
}

func readTick(t *testing.T, conn *websocket.Conn) observerproto.TickMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m observerproto.TickMsg
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestBootstrap(t *testing.T) {
	_, srv, _ := start(t)
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/bootstrap")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var b observerproto.BootstrapResponse
		if json.NewDecoder(resp.Body).Decode(&b) != nil {
			return false
		}
		return b.WorldID == "obs" && b.TickRateHz == 20 && b.Catalogs.Abilities.Count > 0 && b.Tick > 0
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(srv.URL+"/bootstrap", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStream_SeesJoinAndActivation(t *testing.T) {
	w, srv, _ := start(t)
	conn := subscribe(t, srv, observerproto.SubscribeMsg{Kinds: []string{protocol.EventActivated}})
	defer conn.Close()
	require.Eventually(t, func() bool { return w.Metrics().Observers == 1 }, 5*time.Second, 10*time.Millisecond)

	resp := make(chan world.JoinResponse, 1)
	w.Join() <- world.JoinRequest{Name: "alice", Resp: resp}
	r := <-resp
	actor := r.Welcome.ActorID

	var joined bool
	for !joined {
		m := readTick(t, conn)
		for _, j := range m.Joins {
			joined = joined || j.ActorID == actor
		}
	}

	w.Inbox() <- world.CommandEnvelope{ActorID: actor, Act: protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Commands:        []protocol.Command{{ID: "c1", Type: protocol.CmdActivate, Ability: "sprint"}},
	}}
	for {
		m := readTick(t, conn)
		if len(m.Events) == 0 {
			continue
		}
		require.Equal(t, protocol.EventActivated, m.Events[0].Kind)
		require.Equal(t, "sprint", m.Events[0].Ability)
		break
	}
}

func TestStream_WorldStopClosesConn(t *testing.T) {
	_, srv, cancel := start(t)
	conn := subscribe(t, srv, observerproto.SubscribeMsg{})
	defer conn.Close()
	readTick(t, conn)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestStream_RejectsBadSubscribe(t *testing.T) {
	_, srv, _ := start(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{Type: "HELLO"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestFilterOf_Clamps(t *testing.T) {
	require.Equal(t, 200, filterOf(observerproto.SubscribeMsg{StateEvery: 1000}).StateEvery)
	require.Equal(t, 0, filterOf(observerproto.SubscribeMsg{StateEvery: -3}).StateEvery)
}

func TestIsLoopbackRemote(t *testing.T) {
	require.True(t, isLoopbackRemote("127.0.0.1:1"))
	require.False(t, isLoopbackRemote("192.168.1.4:1"))
}
