package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
)

type testServer struct {
	*httptest.Server
	auth *auth.Service
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte("testsecret"),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})
	hub := core.NewHub(memory.New(), auth.NewBcryptVerifier(4), authService, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := NewServer(hub, authService, &cfg, nil)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, auth: authService}
}

func (s *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(s.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one matches typ and, for events, name.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ, name string) rawOutbound {
	t.Helper()
	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s/%s: %v", typ, name, err)
		}
		if out.Type == typ && (name == "" || out.Event == name) {
			return out
		}
	}
}

func decodeData(t *testing.T, out rawOutbound, v any) {
	t.Helper()
	if err := json.Unmarshal(out.Data, v); err != nil {
		t.Fatalf("unmarshal %s data: %v", out.Event, err)
	}
}

// join performs the join handshake and returns the ack.
func join(t *testing.T, ctx context.Context, conn *websocket.Conn, clientID, name string) proto.EventJoined {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		ClientID:    clientID,
		DisplayName: name,
		Credential:  "secret-" + clientID,
		Protocol:    proto.ProtocolVersion,
	})
	var ack proto.EventJoined
	decodeData(t, readUntil(t, ctx, conn, proto.OutboundTypeEvent, "joined"), &ack)
	if !ack.Success {
		t.Fatalf("join %s failed: %+v", name, ack.Error)
	}
	return ack
}
