package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "cli-user", "display name")
	clientID := flag.String("client-id", "cli", "stable client id")
	credential := flag.String("credential", "changeme", "credential for the identity")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		DisplayName: *name,
		Credential:  *credential,
		ClientID:    *clientID,
		Protocol:    proto.ProtocolVersion,
	}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *name)
	fmt.Println("Type messages and press Enter to send. Commands: /to <identity|group|->, /create <group> [private], /join <group>, /history. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case websocket.StatusPolicyViolation:
				fmt.Println("disconnected by server")
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}
		printEvent(out)
	}
}

func printEvent(out frame) {
	switch out.Event {
	case "joined":
		var evt proto.EventJoined
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			log.Printf("unmarshal joined: %v", err)
			return
		}
		if !evt.Success {
			fmt.Printf("join failed: %+v\n", evt.Error)
			return
		}
		fmt.Printf("joined as %s\n", evt.Identity)
	case "message":
		var evt proto.EventMessage
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			log.Printf("unmarshal message: %v", err)
			return
		}
		printMessage(evt)
	case "chat_history":
		var evt proto.EventHistory
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			log.Printf("unmarshal chat_history: %v", err)
			return
		}
		fmt.Printf("-- history of %s (%d) --\n", label(evt.Channel), len(evt.Messages))
		for _, m := range evt.Messages {
			printMessage(m)
		}
	case "clients":
		var evt proto.EventClients
		if err := json.Unmarshal(out.Data, &evt); err == nil {
			fmt.Printf("online: %s\n", strings.Join(evt.Clients, ", "))
		}
	case "forced_disconnect":
		var evt proto.EventForcedDisconnect
		if err := json.Unmarshal(out.Data, &evt); err == nil {
			fmt.Printf("forced disconnect: %s\n", evt.Reason)
		}
	case "typing", "stop_typing":
		// too noisy for a terminal
	default:
		fmt.Printf("event=%s data=%s\n", out.Event, string(out.Data))
	}
}

func printMessage(m proto.EventMessage) {
	edited := ""
	if m.Edited {
		edited = " (edited)"
	}
	fmt.Printf("[%s] %s: %s%s\n", label(m.Channel), m.From, m.Body, edited)
}

func label(channel string) string {
	if channel == "" {
		return "all"
	}
	return channel
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	destination := ""
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			fields := strings.Fields(text)
			switch fields[0] {
			case "/to":
				destination = ""
				if len(fields) > 1 && fields[1] != "-" {
					destination = fields[1]
				}
				fmt.Printf("sending to %s\n", label(destination))
			case "/create":
				if len(fields) < 2 {
					fmt.Println("usage: /create <group> [private]")
					continue
				}
				visibility := "public"
				if len(fields) > 2 {
					visibility = fields[2]
				}
				err = send(ctx, conn, proto.InboundTypeCreateGroup, proto.CreateGroupData{Name: fields[1], Visibility: visibility})
			case "/join":
				if len(fields) < 2 {
					fmt.Println("usage: /join <group>")
					continue
				}
				err = send(ctx, conn, proto.InboundTypeJoinGroup, proto.JoinGroupData{Name: fields[1]})
			case "/history":
				err = send(ctx, conn, proto.InboundTypeRequestHistory, proto.ChannelData{Channel: destination})
			default:
				err = send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{Destination: destination, Body: text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
