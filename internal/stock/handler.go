package stock

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/httpapi"
	"healthreg/internal/bulk/model"
)

// Handler exposes the stock API.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

func NewHandler(service *Service, defaultLimit, maxLimit int, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/_create", h.create)
	r.Post("/v1/_update", h.update)
	r.Post("/v1/_delete", h.delete)
	r.Post("/v1/_search", h.search)
	r.Post("/v1/bulk/_create", h.bulkCreate)
	r.Post("/v1/bulk/_update", h.bulkUpdate)
	r.Post("/v1/bulk/_delete", h.bulkDelete)
	return r
}

type operation func(context.Context, *model.BulkRequest[*Stock]) *bulk.Result[*Stock]

func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, h.service.Create)
}

func (h *Handler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, h.service.Update)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	h.runBulk(w, r, h.service.Delete)
}

func (h *Handler) runBulk(w http.ResponseWriter, r *http.Request, op operation) {
	var req BulkRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, model.RequestInfo{}, errs.CodeInvalidRequest, err.Error())
		return
	}
	if len(req.Stock) == 0 {
		httpapi.WriteError(w, http.StatusBadRequest, req.RequestInfo, errs.CodeInvalidRequest, "Stock must not be empty")
		return
	}

	result := op(r.Context(), &model.BulkRequest[*Stock]{RequestInfo: req.RequestInfo, Entities: req.Stock})
	details := httpapi.ErrorDetails(result.Entities, result.Errors)
	httpapi.WriteJSON(w, http.StatusOK, BulkResponse{
		ResponseInfo: model.ResponseInfoFrom(req.RequestInfo, len(details) < len(result.Entities)),
		Stock:        result.Entities,
		Errors:       details,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.runSingle(w, r, h.service.Create)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.runSingle(w, r, h.service.Update)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.runSingle(w, r, h.service.Delete)
}

func (h *Handler) runSingle(w http.ResponseWriter, r *http.Request, op operation) {
	var req Request
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, model.RequestInfo{}, errs.CodeInvalidRequest, err.Error())
		return
	}
	if req.Stock == nil {
		httpapi.WriteError(w, http.StatusBadRequest, req.RequestInfo, errs.CodeInvalidRequest, "Stock must not be null")
		return
	}

	result := op(r.Context(), &model.BulkRequest[*Stock]{RequestInfo: req.RequestInfo, Entities: []*Stock{req.Stock}})
	if failures := result.Errors[req.Stock]; len(failures) > 0 {
		httpapi.WriteJSON(w, http.StatusBadRequest, BulkResponse{
			ResponseInfo: model.ResponseInfoFrom(req.RequestInfo, false),
			Stock:        result.Entities,
			Errors:       httpapi.ErrorDetails(result.Entities, result.Errors),
		})
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, Response{
		ResponseInfo: model.ResponseInfoFrom(req.RequestInfo, true),
		Stock:        req.Stock,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, model.RequestInfo{}, errs.CodeInvalidRequest, err.Error())
		return
	}
	if req.Stock == nil {
		req.Stock = &Search{}
	}
	params, err := httpapi.ParseSearchParams(r, h.defaultLimit, h.maxLimit)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, req.RequestInfo, errs.CodeInvalidRequest, err.Error())
		return
	}
	params.Apply(&req.Stock.SearchCriteria)

	result, err := h.service.Search(r.Context(), req.Stock)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stock search failed", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, req.RequestInfo, errs.CodeInternal, "search failed")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, SearchResponse{
		ResponseInfo: model.ResponseInfoFrom(req.RequestInfo, true),
		Stock:        result.Entities,
		TotalCount:   result.TotalCount,
	})
}
