package api

import (
	"net/http"

	"github.com/nzahrani/offercast/internal/notification"
	"github.com/nzahrani/offercast/internal/storage"
)

func (s *Server) registerSubscriberRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/subscribers", s.withAuth(s.handleSubscribers))
	mux.Handle("/api/v1/subscribers/", s.withAuth(s.handleSubscriber))
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		list, err := s.st.ListSubscribers(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var sub storage.Subscriber
		if !decodeJSON(w, r, &sub) {
			return
		}
		if sub.Name == "" || sub.Phone == "" {
			http.Error(w, "name and phone are required", http.StatusBadRequest)
			return
		}
		sub.Phone = notification.NormalizePhone(sub.Phone, notification.DefaultCountryPrefix)
		applySubscriberDefaults(&sub)
		if err := s.st.CreateSubscriber(r.Context(), &sub); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func applySubscriberDefaults(sub *storage.Subscriber) {
	if sub.SubscriberType == "" {
		sub.SubscriberType = storage.SubscriberExternal
	}
	if sub.TargetCurrency == "" {
		sub.TargetCurrency = "SAR"
	}
}

func (s *Server) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/v1/subscribers/")
	if len(parts) == 0 {
		http.NotFound(w, r)
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "preference":
			s.handlePreference(w, r, id)
		case "fees":
			s.handleFees(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		sub, err := s.st.GetSubscriber(r.Context(), id)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if sub == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	case http.MethodPut:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var sub storage.Subscriber
		if !decodeJSON(w, r, &sub) {
			return
		}
		sub.ID = id
		if sub.Phone != "" {
			sub.Phone = notification.NormalizePhone(sub.Phone, notification.DefaultCountryPrefix)
		}
		applySubscriberDefaults(&sub)
		if err := s.st.UpdateSubscriber(r.Context(), &sub); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePreference replaces the subscriber's filter as a whole. An empty
// list in any dimension means "no restriction" for that dimension.
func (s *Server) handlePreference(w http.ResponseWriter, r *http.Request, subscriberID uint) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(w, r, "catalog", "write") {
		return
	}
	sub, err := s.st.GetSubscriber(r.Context(), subscriberID)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	var pref storage.Preference
	if !decodeJSON(w, r, &pref) {
		return
	}
	pref.SubscriberID = subscriberID
	if err := s.st.SavePreference(r.Context(), pref); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request, subscriberID uint) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, "catalog", "read") {
			return
		}
		fees, err := s.st.ListDeviceFees(r.Context(), subscriberID)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, fees)
	case http.MethodPost:
		if !s.allow(w, r, "catalog", "write") {
			return
		}
		var fee storage.SubscriberDeviceFee
		if !decodeJSON(w, r, &fee) {
			return
		}
		if fee.DeviceKeyword == "" {
			http.Error(w, "device_keyword is required", http.StatusBadRequest)
			return
		}
		fee.SubscriberID = subscriberID
		if fee.Currency == "" {
			fee.Currency = "AED"
		}
		if err := s.st.CreateDeviceFee(r.Context(), fee); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, fee)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
