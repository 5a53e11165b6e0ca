package handlers

import (
	"net/http"

	"socialcore/application/commands"
	"socialcore/application/queries"
	"socialcore/domain/core/entities"
	"socialcore/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type createPostRequest struct {
	PostType  entities.PostType  `json:"postType"`
	Text      string             `json:"text"`
	ExpiresAt string             `json:"expiresAt,omitempty"`
	AlbumID   string             `json:"albumId,omitempty"`
	Placement commands.Placement `json:"placement"`
}

type albumPlacementRequest struct {
	AlbumID   string             `json:"albumId"`
	Placement commands.Placement `json:"placement"`
}

type placementRequest struct {
	Placement commands.Placement `json:"placement"`
}

type expiryRequest struct {
	ExpiresAt string `json:"expiresAt"`
}

type likeRequest struct {
	Anonymous bool `json:"anonymous"`
}

type textRequest struct {
	Text string `json:"text"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreatePost handles POST /posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !h.decode(w, r, &req) {
		return
	}
	expiresAt, err := utils.ParseOptionalTime("expiresAt", req.ExpiresAt)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.send(w, r, http.StatusCreated, commands.CreatePostCommand{
		PostID:    h.newID(),
		UserID:    caller(r),
		PostType:  req.PostType,
		Text:      req.Text,
		ExpiresAt: expiresAt,
		AlbumID:   req.AlbumID,
		Placement: req.Placement,
	})
}

// GetPost handles GET /posts/{postID}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetPostQuery{PostID: chi.URLParam(r, "postID")})
}

// UserPosts handles GET /users/{userID}/posts?status=
func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	status := entities.PostStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = entities.PostCompleted
	}
	userID := chi.URLParam(r, "userID")
	if status != entities.PostCompleted && userID != caller(r) {
		status = entities.PostCompleted
	}
	h.ask(w, r, queries.UserPostsQuery{UserID: userID, Status: status, PageRequest: pageRequest(r)})
}

// PostLifecycle handles POST /posts/{postID}/{action}
func (h *Handler) PostLifecycle(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.PostLifecycleCommand{
		UserID: caller(r),
		PostID: chi.URLParam(r, "postID"),
		Action: chi.URLParam(r, "action"),
	})
}

// DeletePost handles DELETE /posts/{postID}
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeletePostCommand{UserID: caller(r), PostID: chi.URLParam(r, "postID")})
}

// SetAlbum handles PUT /posts/{postID}/album
func (h *Handler) SetAlbum(w http.ResponseWriter, r *http.Request) {
	var req albumPlacementRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.SetAlbumCommand{
		UserID:    caller(r),
		PostID:    chi.URLParam(r, "postID"),
		AlbumID:   req.AlbumID,
		Placement: req.Placement,
	})
}

// MovePost handles PUT /posts/{postID}/position
func (h *Handler) MovePost(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.MovePostCommand{
		UserID:    caller(r),
		PostID:    chi.URLParam(r, "postID"),
		Placement: req.Placement,
	})
}

// SetExpiry handles PUT /posts/{postID}/expiry. An empty expiresAt clears it.
func (h *Handler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	var req expiryRequest
	if !h.decode(w, r, &req) {
		return
	}
	expiresAt, err := utils.ParseOptionalTime("expiresAt", req.ExpiresAt)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.send(w, r, http.StatusOK, commands.SetExpiryCommand{
		UserID:    caller(r),
		PostID:    chi.URLParam(r, "postID"),
		ExpiresAt: expiresAt,
	})
}

// Like handles POST /posts/{postID}/likes
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.LikePostCommand{
		UserID:    caller(r),
		PostID:    chi.URLParam(r, "postID"),
		Anonymous: req.Anonymous,
	})
}

// Dislike handles DELETE /posts/{postID}/likes
func (h *Handler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DislikePostCommand{UserID: caller(r), PostID: chi.URLParam(r, "postID")})
}

// View handles POST /posts/{postID}/views
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.ViewPostCommand{UserID: caller(r), PostID: chi.URLParam(r, "postID")})
}

// Comments handles GET /posts/{postID}/comments
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.CommentsQuery{PostID: chi.URLParam(r, "postID")})
}

// AddComment handles POST /posts/{postID}/comments
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.AddCommentCommand{
		CommentID: h.newID(),
		PostID:    chi.URLParam(r, "postID"),
		UserID:    caller(r),
		Text:      req.Text,
	})
}

// DeleteComment handles DELETE /comments/{commentID}
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeleteCommentCommand{UserID: caller(r), CommentID: chi.URLParam(r, "commentID")})
}

// FlagPost handles POST /posts/{postID}/flags
func (h *Handler) FlagPost(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusCreated, commands.FlagPostCommand{UserID: caller(r), PostID: chi.URLParam(r, "postID")})
}

// CreateAlbum handles POST /albums
func (h *Handler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.CreateAlbumCommand{AlbumID: h.newID(), UserID: caller(r), Name: req.Name})
}

// DeleteAlbum handles DELETE /albums/{albumID}
func (h *Handler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeleteAlbumCommand{UserID: caller(r), AlbumID: chi.URLParam(r, "albumID")})
}

// Albums handles GET /users/{userID}/albums
func (h *Handler) Albums(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.AlbumsQuery{UserID: chi.URLParam(r, "userID")})
}

// AlbumOrder handles GET /albums/{albumID}/order
func (h *Handler) AlbumOrder(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.AlbumOrderQuery{AlbumID: chi.URLParam(r, "albumID")})
}
