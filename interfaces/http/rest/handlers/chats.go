package handlers

import (
	"net/http"

	"socialcore/application/commands"
	"socialcore/application/queries"

	"github.com/go-chi/chi/v5"
)

type directChatRequest struct {
	UserID string `json:"userId"`
}

type groupChatRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

// CreateDirectChat handles POST /chats/direct
func (h *Handler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	var req directChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.CreateDirectChatCommand{
		ChatID:      h.newID(),
		UserID:      caller(r),
		OtherUserID: req.UserID,
	})
}

// CreateGroupChat handles POST /chats/group
func (h *Handler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	var req groupChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.CreateGroupChatCommand{
		ChatID:    h.newID(),
		UserID:    caller(r),
		Name:      req.Name,
		MemberIDs: req.MemberIDs,
	})
}

// GetChat handles GET /chats/{chatID}
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ChatQuery{UserID: caller(r), ChatID: chi.URLParam(r, "chatID")})
}

// AddMember handles POST /chats/{chatID}/members
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.AddChatMemberCommand{
		ActorID: caller(r),
		ChatID:  chi.URLParam(r, "chatID"),
		UserID:  req.UserID,
	})
}

// LeaveChat handles DELETE /chats/{chatID}/members/me
func (h *Handler) LeaveChat(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.LeaveChatCommand{UserID: caller(r), ChatID: chi.URLParam(r, "chatID")})
}

// Messages handles GET /chats/{chatID}/messages
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.MessagesQuery{
		UserID:      caller(r),
		ChatID:      chi.URLParam(r, "chatID"),
		PageRequest: pageRequest(r),
	})
}

// SendMessage handles POST /chats/{chatID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.SendMessageCommand{
		MessageID: h.newID(),
		ChatID:    chi.URLParam(r, "chatID"),
		UserID:    caller(r),
		Text:      req.Text,
	})
}

// ViewChat handles POST /chats/{chatID}/view
func (h *Handler) ViewChat(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.ViewChatCommand{UserID: caller(r), ChatID: chi.URLParam(r, "chatID")})
}

// DeleteMessage handles DELETE /messages/{messageID}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeleteMessageCommand{UserID: caller(r), MessageID: chi.URLParam(r, "messageID")})
}

// FlagMessage handles POST /messages/{messageID}/flags
func (h *Handler) FlagMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusCreated, commands.FlagMessageCommand{UserID: caller(r), MessageID: chi.URLParam(r, "messageID")})
}
