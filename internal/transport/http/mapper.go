package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func invalid(msg string) *proto.Error {
	return &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: msg}
}

// inboundToCommand maps one client frame to a core command. Malformed frames
// yield a protocol error for the client rather than a Go error.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := decode(inbound, &join); err != nil {
			return nil, err
		}
		if join.Protocol != 0 && join.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{
				Code: proto.ErrCodeUnsupportedVersion,
				Msg:  fmt.Sprintf("protocol %d is not supported, use %d", join.Protocol, proto.ProtocolVersion),
			}
		}
		return &core.Command{
			Kind: core.CommandJoin,
			Join: core.JoinRequest{
				ClientID:    join.ClientID,
				DisplayName: join.DisplayName,
				Credential:  join.Credential,
			},
		}, nil

	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := decode(inbound, &msg); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Channel: msg.Destination,
			Type:    core.MessageType(msg.Type),
			Body:    msg.Body,
		}, nil

	case proto.InboundTypeCreateGroup:
		var group proto.CreateGroupData
		if err := decode(inbound, &group); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind: core.CommandCreateGroup,
			Group: core.GroupSpec{
				Name:       group.Name,
				Visibility: core.Visibility(group.Visibility),
				Members:    group.Members,
			},
		}, nil

	case proto.InboundTypeJoinGroup:
		var group proto.JoinGroupData
		if err := decode(inbound, &group); err != nil {
			return nil, err
		}
		if group.Name == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "group name is required"}
		}
		return &core.Command{Kind: core.CommandJoinGroup, Group: core.GroupSpec{Name: group.Name}}, nil

	case proto.InboundTypeRequestHistory, proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var ch proto.ChannelData
		if err := decode(inbound, &ch); err != nil {
			return nil, err
		}
		kind := core.CommandRequestHistory
		switch inbound.Type {
		case proto.InboundTypeTyping:
			kind = core.CommandTyping
		case proto.InboundTypeStopTyping:
			kind = core.CommandStopTyping
		}
		return &core.Command{Kind: kind, Channel: ch.Channel}, nil

	case proto.InboundTypeEditMessage:
		var edit proto.EditMessageData
		if err := decode(inbound, &edit); err != nil {
			return nil, err
		}
		if edit.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message_id is required"}
		}
		return &core.Command{
			Kind:      core.CommandEditMessage,
			Channel:   edit.Channel,
			MessageID: edit.MessageID,
			Body:      edit.Body,
		}, nil

	default:
		return nil, invalid("unknown message type")
	}
}

// decode unmarshals the payload. An absent payload decodes as the zero value.
func decode(inbound proto.Inbound, v any) *proto.Error {
	if len(inbound.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(inbound.Data, v); err != nil {
		return invalid("malformed " + inbound.Type + " payload")
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}

	switch event.Kind {
	case core.EventJoined:
		data := proto.EventJoined{}
		if event.Join != nil {
			data.Success = event.Join.Success
			if event.Join.Success {
				data.Identity = event.Join.Identity.Key
				data.DisplayName = event.Join.Identity.DisplayName
				data.Tag = event.Join.Identity.Tag
				data.Token = event.Join.Token
			}
		}
		if event.Error != nil {
			data.Error = protoError(event.Error)
		}
		out.Data = data

	case core.EventMessage:
		out.Data = messageFromCore(event.Channel, event.Message)

	case core.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageFromCore(event.Channel, msg))
		}
		out.Data = proto.EventHistory{Channel: event.Channel, Messages: messages}

	case core.EventClients:
		clients := event.Clients
		if clients == nil {
			clients = []string{}
		}
		out.Data = proto.EventClients{Clients: clients}

	case core.EventGroups:
		out.Data = proto.EventGroups{Groups: groupsFromCore(event.Groups)}

	case core.EventGroupMembers:
		out.Data = proto.EventGroupMembers{Name: event.Group, Members: event.Members}

	case core.EventTyping, core.EventStopTyping:
		out.Data = proto.EventTyping{Channel: event.Channel, User: event.User}

	case core.EventForcedDisconnect:
		out.Data = proto.EventForcedDisconnect{Reason: event.Reason}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{Type: proto.OutboundTypeError, Error: protoError(event.Error)}
	}
	return out
}

// messageFromCore renders msg with the channel reference as the receiver sees it.
func messageFromCore(channel string, msg core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      msg.ID,
		Channel: channel,
		From:    msg.From,
		Type:    string(msg.Type),
		Body:    msg.Body,
		TS:      msg.SentAt.UnixMilli(),
		Edited:  msg.Edited,
	}
}

func groupsFromCore(groups []core.Group) []proto.GroupInfo {
	out := make([]proto.GroupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, proto.GroupInfo{
			Name:       g.Name,
			Visibility: string(g.Visibility),
			Members:    g.Members,
			CreatedAt:  g.CreatedAt.Unix(),
		})
	}
	return out
}

func protoError(err *core.CoreError) *proto.Error {
	return &proto.Error{Code: err.Code, Msg: err.Message}
}
