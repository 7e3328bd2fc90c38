package api

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/storage"
)

// ShippingImporter structures a raw shipping price-list document into rows.
type ShippingImporter interface {
	ExtractShippingList(ctx context.Context, data, mimeType string) ([]extract.ShippingItem, error)
}

const maxImportBytes = 10 << 20

func (s *Server) registerCatalogRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/suppliers", s.withAuth(s.handleSuppliers))
	mux.Handle("/api/v1/suppliers/", s.withAuth(s.handleSupplier))
	mux.Handle("/api/v1/currency-rates", s.withAuth(s.handleCurrencyRates))
	mux.Handle("/api/v1/currency-rates/", s.withAuth(s.handleCurrencyRate))
	mux.Handle("/api/v1/shipping-rates", s.withAuth(s.handleShippingRates))
	mux.Handle("/api/v1/shipping-rates/", s.withAuth(s.handleShippingRate))
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		list, err := s.st.ListSuppliers(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var sup storage.Supplier
		if !decodeJSON(w, r, &sup) {
			return
		}
		if sup.Name == "" {
			http.Error(w, "supplier name is required", http.StatusBadRequest)
			return
		}
		if err := s.st.CreateSupplier(r.Context(), &sup); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, sup)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSupplier(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/v1/suppliers/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		sup, err := s.st.GetSupplier(r.Context(), id)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if sup == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, sup)
	case http.MethodPut:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var sup storage.Supplier
		if !decodeJSON(w, r, &sup) {
			return
		}
		sup.ID = id
		if err := s.st.UpdateSupplier(r.Context(), &sup); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sup)
	case http.MethodDelete:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		if err := s.st.DeleteSupplier(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCurrencyRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		list, err := s.st.ListCurrencyRates(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var rate storage.CurrencyRate
		if !decodeJSON(w, r, &rate) {
			return
		}
		if rate.FromCurrency == "" || rate.ToCurrency == "" {
			http.Error(w, "from_currency and to_currency are required", http.StatusBadRequest)
			return
		}
		if err := s.st.UpsertCurrencyRate(r.Context(), rate); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rate)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCurrencyRate(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/v1/currency-rates/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "catalog", "write") {
		return
	}
	if err := s.st.DeleteCurrencyRate(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShippingRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		list, err := s.st.ListShippingRates(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var rate storage.ShippingRate
		if !decodeJSON(w, r, &rate) {
			return
		}
		if rate.KeywordEN == "" {
			http.Error(w, "keyword_en is required", http.StatusBadRequest)
			return
		}
		if rate.Currency == "" {
			rate.Currency = "AED"
		}
		if err := s.st.UpsertShippingRate(r.Context(), rate); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rate)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleShippingRate(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/v1/shipping-rates/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	if parts[0] == "import" {
		s.handleShippingImport(w, r)
		return
	}

	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "catalog", "write") {
		return
	}
	if err := s.st.DeleteShippingRate(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShippingImport accepts a raw price-list document (PDF or image),
// hands it to the extractor, and upserts the resulting keyword rows.
func (s *Server) handleShippingImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "catalog", "write") {
		return
	}
	if s.shipping == nil {
		http.Error(w, "shipping import not configured", http.StatusServiceUnavailable)
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil || len(raw) == 0 {
		http.Error(w, "empty document", http.StatusBadRequest)
		return
	}

	items, err := s.shipping.ExtractShippingList(r.Context(), base64.StdEncoding.EncodeToString(raw), mimeType)
	if err != nil {
		if errors.Is(err, extract.ErrNotConfigured) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var saved []storage.ShippingRate
	for _, it := range items {
		if it.KeywordEN == "" {
			continue
		}
		rate := storage.ShippingRate{
			KeywordEN: it.KeywordEN,
			KeywordAR: it.KeywordAR,
			Cost:      it.Cost,
			Currency:  it.Currency,
		}
		if rate.Currency == "" {
			rate.Currency = "AED"
		}
		if err := s.st.UpsertShippingRate(r.Context(), rate); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		saved = append(saved, rate)
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(saved), "rates": saved})
}
