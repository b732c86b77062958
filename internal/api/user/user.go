// Package user exposes the authenticated /user endpoints: channel
// authorization, the connection request lifecycle, contact listing,
// message relay, and contact lookup.
package user

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/contacthub/contacthub/internal/api"
	"github.com/contacthub/contacthub/internal/appctx"
	"github.com/contacthub/contacthub/internal/graph"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
	"github.com/contacthub/contacthub/internal/relay"
)

var validate = validator.New()

// Handler handles the /user endpoints. Every route requires an
// authenticated identity in the request context.
type Handler struct {
	graph      *graph.ConnectionGraph
	relay      *relay.MessageRelay
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

func NewHandler(g *graph.ConnectionGraph, r *relay.MessageRelay, d *notify.Dispatcher, log *slog.Logger) *Handler {
	return &Handler{graph: g, relay: r, dispatcher: d, log: log}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := appctx.IdentityFromContext(r.Context())
	if !ok {
		api.WriteUnauthenticated(w)
	}
	return id, ok
}

// PusherAuth handles POST /api/v1/user/pusher/auth. Clients may only
// authorize their own private channel. The body arrives form-encoded from
// the browser client, JSON from everything else.
func (h *Handler) PusherAuth(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	socketID, channel := channelAuthParams(r)
	if socketID == "" || channel == "" {
		api.WriteBadRequest(w, "socket_id and channel_name are required")
		return
	}

	resp, err := h.dispatcher.AuthenticateChannel(socketID, channel, current.UID)
	if err != nil {
		if errors.Is(err, notify.ErrChannelMismatch) {
			api.WriteUnauthenticated(w)
			return
		}
		h.log.Error("channel authorization failed", "uid", current.UID, "error", err)
		api.WriteInternalError(w, "channel authorization failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

func channelAuthParams(r *http.Request) (socketID, channel string) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			SocketID string `json:"socket_id"`
			Channel  string `json:"channel_name"`
		}
		if err := api.DecodeJSON(r, &body); err != nil {
			return "", ""
		}
		return body.SocketID, body.Channel
	}
	if err := r.ParseForm(); err != nil {
		return "", ""
	}
	return r.PostFormValue("socket_id"), r.PostFormValue("channel_name")
}

// SendFriendReqRequest is the request body for sending a connection request.
type SendFriendReqRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SendFriendReq handles POST /api/v1/user/sendFriendReq.
func (h *Handler) SendFriendReq(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req SendFriendReqRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, "a valid email is required")
		return
	}

	created, err := h.graph.SendRequest(r.Context(), current, req.Email)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// RequestIDBody carries the request id used by dismiss and accept.
type RequestIDBody struct {
	ID string `json:"_id" validate:"required"`
}

// DismissResponse reports the outcome of a dismissal.
type DismissResponse struct {
	Dismissed bool   `json:"dismissed"`
	ID        string `json:"_id,omitempty"`
}

// DismissFriendReq handles POST /api/v1/user/dismissFriendReq. Dismissing
// an id that no longer exists succeeds and reports dismissed=false.
func (h *Handler) DismissFriendReq(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req RequestIDBody
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, "_id is required")
		return
	}

	removed, err := h.graph.DismissRequest(r.Context(), current, req.ID)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	resp := DismissResponse{Dismissed: removed != nil}
	if removed != nil {
		resp.ID = removed.ID
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// GetConnectionRequests handles GET /api/v1/user/getConnectionRequests and
// returns the pending requests addressed to the caller.
func (h *Handler) GetConnectionRequests(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	pending, err := h.graph.ListRequests(r.Context(), current)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, pending)
}

// AcceptFriendReq handles POST /api/v1/user/acceptFriendReq and returns
// the caller's contact document after the merge.
func (h *Handler) AcceptFriendReq(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req RequestIDBody
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, "_id is required")
		return
	}

	merged, err := h.graph.AcceptRequest(r.Context(), current, req.ID)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, merged)
}

// Contacts handles GET /api/v1/user/contacts.
func (h *Handler) Contacts(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	doc, err := h.graph.ListContacts(r.Context(), current)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, doc)
}

// SendMessageRequest is the request body for relaying a message.
type SendMessageRequest struct {
	Message       string `json:"message" validate:"required"`
	ReceiverID    string `json:"receiverId" validate:"required"`
	ReceiverEmail string `json:"receiverEmail" validate:"required,email"`
}

// SendMessage handles POST /api/v1/user/sendMessage.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, "message, receiverId and receiverEmail are required")
		return
	}

	event, err := h.relay.SendMessage(r.Context(), current, req.ReceiverID, req.ReceiverEmail, req.Message)
	if err != nil {
		if errors.Is(err, relay.ErrNotConnected) {
			api.WriteError(w, http.StatusForbidden, api.StatusForbidden, "you are not connected to this user")
			return
		}
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, event)
}

// FindContactRequest is the request body for a contact lookup.
type FindContactRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// FindContact handles POST /api/v1/user/findContact.
func (h *Handler) FindContact(w http.ResponseWriter, r *http.Request) {
	current, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req FindContactRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, "a valid email is required")
		return
	}

	result, err := h.graph.Lookup(r.Context(), current, req.Email)
	if err != nil {
		h.writeGraphError(w, current, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// writeGraphError maps domain errors onto the response envelope.
func (h *Handler) writeGraphError(w http.ResponseWriter, current identity.Identity, err error) {
	switch {
	case errors.Is(err, graph.ErrSelfRequest):
		api.WriteBadRequest(w, "you cannot send a request to yourself")
	case errors.Is(err, identity.ErrUserNotFound):
		api.WriteNotFound(w, "no user with this email")
	case errors.Is(err, graph.ErrAlreadyConnected):
		api.WriteConflict(w, "already connected")
	case errors.Is(err, graph.ErrRequestAlreadySent):
		api.WriteConflict(w, "a request between these users is already pending")
	case errors.Is(err, graph.ErrRequestNotFound):
		api.WriteNotFound(w, "no request info found")
	default:
		h.log.Error("request failed", "uid", current.UID, "error", err)
		api.WriteInternalError(w, "request failed")
	}
}
