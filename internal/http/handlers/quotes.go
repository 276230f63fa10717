package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/quotes-service/internal/errors"
	"github.com/pribylovaa/quotes-service/internal/http/middleware"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/service"
)

func (h *Handlers) AddQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMissingToken)
		return
	}

	var in addQuoteRequest
	if err := h.decode(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	q, err := h.svc.AddQuote(r.Context(), p, models.QuoteInput{Text: in.Text, Author: in.Author})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, toQuoteResponse(*q), "Quote added successfully")
}

func (h *Handlers) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMissingToken)
		return
	}

	var in deleteQuoteRequest
	if err := h.decode(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := uuid.Parse(in.ID)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.Invalid("id", "must be a valid uuid"))
		return
	}

	if err := h.svc.DeleteQuote(r.Context(), p, id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, nil, "Quote deleted successfully")
}

func (h *Handlers) ListQuotes(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrMissingToken)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.WriteError(w, r, apierrors.Invalid("limit", "must be an integer"))
			return
		}
		limit = n
	}

	list, err := h.svc.ListQuotes(r.Context(), p, limit)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]quoteResponse, 0, len(list))
	for _, q := range list {
		out = append(out, toQuoteResponse(q))
	}

	writeOK(w, http.StatusOK, out, "Quotes fetched successfully")
}
