package handlers

import (
	"net/http"

	"socialcore/application/commands"
	"socialcore/application/queries"
	"socialcore/domain/core/entities"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Username string           `json:"username"`
	Privacy  entities.Privacy `json:"privacy"`
}

type privacyRequest struct {
	Privacy entities.Privacy `json:"privacy"`
}

// CreateUser handles POST /users. The profile is created for the caller.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.CreateUserCommand{
		UserID:   caller(r),
		Username: req.Username,
		Privacy:  req.Privacy,
	})
}

// GetUser handles GET /users/{userID}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetUserQuery{UserID: chi.URLParam(r, "userID")})
}

// SetPrivacy handles PUT /me/privacy
func (h *Handler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	var req privacyRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.SetPrivacyCommand{UserID: caller(r), Privacy: req.Privacy})
}

// Follow handles POST /users/{userID}/follow
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusCreated, commands.FollowCommand{
		FollowerID: caller(r),
		FollowedID: chi.URLParam(r, "userID"),
	})
}

// Unfollow handles DELETE /users/{userID}/follow
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.UnfollowCommand{
		FollowerID: caller(r),
		FollowedID: chi.URLParam(r, "userID"),
	})
}

// AcceptFollower handles POST /me/followers/{followerID}/accept
func (h *Handler) AcceptFollower(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.AcceptFollowCommand{
		FollowedID: caller(r),
		FollowerID: chi.URLParam(r, "followerID"),
	})
}

// DenyFollower handles POST /me/followers/{followerID}/deny
func (h *Handler) DenyFollower(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DenyFollowCommand{
		FollowedID: caller(r),
		FollowerID: chi.URLParam(r, "followerID"),
	})
}

// Followers handles GET /users/{userID}/followers?status=
func (h *Handler) Followers(w http.ResponseWriter, r *http.Request) {
	status := entities.FollowStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = entities.FollowFollowing
	}
	h.ask(w, r, queries.FollowersQuery{
		UserID:      chi.URLParam(r, "userID"),
		Status:      status,
		PageRequest: pageRequest(r),
	})
}

// Block handles POST /users/{userID}/block
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusCreated, commands.BlockCommand{
		BlockerID: caller(r),
		BlockedID: chi.URLParam(r, "userID"),
	})
}

// Unblock handles DELETE /users/{userID}/block
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.UnblockCommand{
		BlockerID: caller(r),
		BlockedID: chi.URLParam(r, "userID"),
	})
}

// Feed handles GET /me/feed
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.FeedQuery{UserID: caller(r), PageRequest: pageRequest(r)})
}

// Stories handles GET /me/stories
func (h *Handler) Stories(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.FirstStoriesQuery{UserID: caller(r)})
}

// Cards handles GET /me/cards
func (h *Handler) Cards(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.CardsQuery{UserID: caller(r), PageRequest: pageRequest(r)})
}

// DismissCard handles DELETE /me/cards/{cardID}
func (h *Handler) DismissCard(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DismissCardCommand{
		UserID: caller(r),
		CardID: chi.URLParam(r, "cardID"),
	})
}
