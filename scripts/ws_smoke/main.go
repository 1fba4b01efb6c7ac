package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins two identities, sends a broadcast from the first and waits for
// the second to receive it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	text := flag.String("text", "hello from smoke test", "message body to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sender, err := dialAndJoin(ctx, *addr, "smoke-sender", "sender")
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	receiver, err := dialAndJoin(ctx, *addr, "smoke-receiver", "receiver")
	if err != nil {
		return err
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.SendMessageData{Body: *text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := wsjson.Write(ctx, sender, proto.Inbound{Type: proto.InboundTypeSendMessage, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		out, err := read(ctx, receiver)
		if err != nil {
			return err
		}
		if out.Event != "message" {
			continue
		}
		var evt proto.EventMessage
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			fmt.Printf("Raw data: %s\n", string(out.Data))
			return fmt.Errorf("unmarshal message: %w", err)
		}
		fmt.Printf("EventMessage: id=%s from=%s body=%q ts=%d\n", evt.ID, evt.From, evt.Body, evt.TS)
		return nil
	}
}

func dialAndJoin(ctx context.Context, addr, clientID, name string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	payload, err := json.Marshal(proto.JoinData{
		DisplayName: name,
		Credential:  clientID + "-credential",
		ClientID:    clientID,
		Protocol:    proto.ProtocolVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal join: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: payload}); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	for {
		out, err := read(ctx, conn)
		if err != nil {
			return nil, err
		}
		if out.Event != "joined" {
			continue
		}
		var ack proto.EventJoined
		if err := json.Unmarshal(out.Data, &ack); err != nil {
			return nil, fmt.Errorf("unmarshal joined: %w", err)
		}
		if !ack.Success {
			return nil, fmt.Errorf("join %s failed: %+v", name, ack.Error)
		}
		fmt.Printf("Joined: %s\n", ack.Identity)
		return conn, nil
	}
}

func read(ctx context.Context, conn *websocket.Conn) (frame, error) {
	var out frame
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	fmt.Printf("Received outbound: type=%s", out.Type)
	if out.Event != "" {
		fmt.Printf(" event=%s", out.Event)
	}
	fmt.Println()
	if out.Error != nil {
		fmt.Printf("Error: %s %s\n", out.Error.Code, out.Error.Msg)
	}
	return out, nil
}
