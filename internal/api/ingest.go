package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/nzahrani/offercast/internal/alerting"
	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/ingest"
	"github.com/nzahrani/offercast/internal/storage"
)

func (s *Server) registerIngestRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/offers", s.withAuth(s.handleOffers))
	mux.Handle("/api/v1/ingest/analyze", s.withAuth(s.handleAnalyze))
	mux.Handle("/api/v1/ingest/save", s.withAuth(s.handleSave))
	mux.Handle("/api/v1/offers/distribute", s.withAuth(s.handleDistribute))
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "offers", "read") {
		return
	}

	var f storage.OfferFilter
	q := r.URL.Query()
	if v := q.Get("supplier_id"); v != "" {
		id, ok := parseID(v)
		if !ok {
			http.Error(w, "invalid supplier_id", http.StatusBadRequest)
			return
		}
		f.SupplierID = id
	}
	f.NameLike = q.Get("q")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	offers, err := s.st.ListOffers(r.Context(), f)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Groups      []ingest.AnalyzedGroup `json:"groups"`
	MissingFees []ingest.MissingFee    `json:"missing_fees,omitempty"`
}

// handleAnalyze runs extraction over raw supplier text without persisting
// anything, returning the structured groups plus any device-fee gaps the
// operator must fill before a save can go through.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "offers", "write") {
		return
	}
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	groups, err := s.ingest.Analyze(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, extract.ErrNotConfigured) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			http.Error(w, exErr.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var names []string
	for _, g := range groups {
		if g.GroupingName != "" {
			names = append(names, g.GroupingName)
		}
	}
	gaps, err := s.ingest.MissingFees(r.Context(), names)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Groups: groups, MissingFees: gaps})
}

type saveRequest struct {
	SupplierID   uint                   `json:"supplier_id"`
	Groups       []ingest.AnalyzedGroup `json:"groups"`
	OriginalText string                 `json:"original_text"`
	Distribute   bool                   `json:"distribute"`
}

type saveResponse struct {
	Offers []storage.Offer      `json:"offers"`
	Report *distributionSummary `json:"report,omitempty"`
}

type distributionSummary struct {
	Supplier string `json:"supplier"`
	Sent     int    `json:"sent"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// handleSave commits an analyzed batch and, when requested, fans it out to
// subscribers. Unresolved device-fee gaps abort with 409 and the gap list
// so the client can confirm or fix before retrying.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "offers", "write") {
		return
	}
	var req saveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SupplierID == 0 || len(req.Groups) == 0 {
		http.Error(w, "supplier_id and groups are required", http.StatusBadRequest)
		return
	}

	if req.Distribute {
		offers, report, err := s.ingest.SaveAndDistribute(r.Context(), req.SupplierID, req.Groups, req.OriginalText)
		if err != nil {
			s.writeSaveError(w, err)
			return
		}
		resp := saveResponse{Offers: offers}
		if report != nil {
			resp.Report = &distributionSummary{
				Supplier: report.Supplier,
				Sent:     report.Sent(),
				Skipped:  report.Skipped(),
				Failed:   report.Failed(),
			}
			if s.alerter != nil && report.Failed() > 0 {
				alert := alerting.FromReport(*report)
				go func() {
					if err := s.alerter.SendRunAlert(context.Background(), alert); err != nil {
						log.Printf("distribution alert failed: %v", err)
					}
				}()
			}
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	offers, err := s.ingest.SaveBatch(r.Context(), req.SupplierID, req.Groups, req.OriginalText)
	if err != nil {
		s.writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{Offers: offers})
}

// handleDistribute re-sends a supplier's saved offers, either to all
// active subscribers or, when subscriber_id is set, to that one
// subscriber only.
func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "offers", "write") {
		return
	}

	var req struct {
		SupplierID   uint `json:"supplier_id"`
		SubscriberID uint `json:"subscriber_id"`
		Limit        int  `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SupplierID == 0 {
		http.Error(w, "supplier_id is required", http.StatusBadRequest)
		return
	}

	supplier, err := s.st.GetSupplier(r.Context(), req.SupplierID)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if supplier == nil {
		http.NotFound(w, r)
		return
	}
	offers, err := s.st.ListOffers(r.Context(), storage.OfferFilter{SupplierID: req.SupplierID, Limit: req.Limit})
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if len(offers) == 0 {
		http.Error(w, "supplier has no saved offers", http.StatusBadRequest)
		return
	}

	var report distribution.Report
	if req.SubscriberID != 0 {
		sub, err := s.st.GetSubscriber(r.Context(), req.SubscriberID)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if sub == nil {
			http.NotFound(w, r)
			return
		}
		report = s.engine.Distribute(r.Context(), offers, *supplier, []storage.Subscriber{*sub})
	} else {
		report, err = s.engine.DistributeToAll(r.Context(), s.st, offers, *supplier)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if s.alerter != nil && report.Failed() > 0 {
		alert := alerting.FromReport(report)
		go func() {
			if err := s.alerter.SendRunAlert(context.Background(), alert); err != nil {
				log.Printf("distribution alert failed: %v", err)
			}
		}()
	}
	writeJSON(w, http.StatusOK, distributionSummary{
		Supplier: report.Supplier,
		Sent:     report.Sent(),
		Skipped:  report.Skipped(),
		Failed:   report.Failed(),
	})
}

func (s *Server) writeSaveError(w http.ResponseWriter, err error) {
	var gaps *ingest.MissingFeesError
	if errors.As(err, &gaps) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        gaps.Error(),
			"missing_fees": gaps.Items,
		})
		return
	}
	if strings.Contains(err.Error(), "not found") {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
