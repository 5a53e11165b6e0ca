// Package handlers translates HTTP requests into commands and queries. The caller's
// identity always comes from the request context, never from the body.
package handlers

import (
	"net/http"

	"socialcore/application/commands/bus"
	"socialcore/application/queries"
	querybus "socialcore/application/queries/bus"
	"socialcore/domain/core/valueobjects"
	"socialcore/pkg/common"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// Handler holds what every endpoint needs
type Handler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
	newID      func() string
}

// NewHandler creates a new handler
func NewHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *Handler {
	return &Handler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errs,
		logger:     logger,
		newID:      valueobjects.NewID,
	}
}

// caller returns the authenticated user. The identity middleware guarantees one.
func caller(r *http.Request) string {
	return common.CallerID(r.Context())
}

// decode reads the JSON body into v, reporting malformed bodies as validation errors.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return false
	}
	return true
}

// send runs a command and writes its result with status.
func (h *Handler) send(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, status, result, &common.MetaInfo{RequestID: common.RequestID(r.Context())})
}

// ask runs a query and writes its result.
func (h *Handler) ask(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, http.StatusOK, result, &common.MetaInfo{RequestID: common.RequestID(r.Context())})
}

func pageRequest(r *http.Request) queries.PageRequest {
	params := common.ExtractPageParams(r)
	return queries.PageRequest{Limit: params.Limit, Cursor: params.Cursor}
}
