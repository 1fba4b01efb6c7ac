package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// APIHandlers serves read-only snapshots of hub state to token holders.
type APIHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ClientsResponse is the presence snapshot.
type ClientsResponse struct {
	Clients []string `json:"clients"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	Name       string   `json:"name"`
	Visibility string   `json:"visibility"`
	Members    []string `json:"members"`
	CreatedAt  string   `json:"created_at"`
}

// HistoryResponse carries one channel's messages.
type HistoryResponse struct {
	Channel  string            `json:"channel"`
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	Type   string `json:"type"`
	Body   string `json:"body"`
	SentAt string `json:"sent_at"`
	Edited bool   `json:"edited"`
}

// Clients lists active identities.
// GET /api/clients
func (h *APIHandlers) Clients(c *gin.Context) {
	clients := h.hub.ActiveIdentities()
	if clients == nil {
		clients = []string{}
	}
	c.JSON(http.StatusOK, ClientsResponse{Clients: clients})
}

// Groups lists all groups in creation order.
// GET /api/groups
func (h *APIHandlers) Groups(c *gin.Context) {
	groups := h.hub.Groups()
	resp := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, GroupResponse{
			Name:       g.Name,
			Visibility: string(g.Visibility),
			Members:    g.Members,
			CreatedAt:  g.CreatedAt.Format(timeFormat),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the messages of one channel visible to the caller.
// GET /api/history?channel=
func (h *APIHandlers) History(c *gin.Context) {
	identity := c.GetString(ContextKeyIdentity)
	if identity == "" {
		h.log.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	channel := c.Query("channel")
	msgs, err := h.hub.History(identity, channel)
	if err != nil {
		h.writeCoreError(c, err)
		return
	}

	resp := HistoryResponse{Channel: channel, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:     m.ID,
			From:   m.From,
			Type:   string(m.Type),
			Body:   m.Body,
			SentAt: m.SentAt.Format(timeFormat),
			Edited: m.Edited,
		})
	}
	c.JSON(http.StatusOK, resp)
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func (h *APIHandlers) writeCoreError(c *gin.Context, err error) {
	var ce *core.CoreError
	if !errors.As(err, &ce) {
		h.log.Error().Err(err).Msg("history lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusBadRequest
	switch ce.Code {
	case core.ErrCodeNotAMember, core.ErrCodeForbidden:
		status = http.StatusForbidden
	case core.ErrCodeGroupNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, ErrorResponse{Error: ce.Message, Code: ce.Code})
}
