package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/danielmarv/hms-front-sub002/internal/adapters/observability"
	"github.com/danielmarv/hms-front-sub002/internal/app"
	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

type Handlers struct {
	Wizard  *app.WizardService
	Catalog *app.CatalogService
	Hotels  *app.HotelContext
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/wizard", func(r chi.Router) {
		r.Post("/", h.startWizard)
		r.Get("/{id}", h.getWizard)
		r.Delete("/{id}", h.cancelWizard)
		r.Patch("/{id}/draft", h.updateDraft)
		r.Post("/{id}/search-rooms", h.searchRooms)
		r.Post("/{id}/select-room", h.selectRoom)
		r.Post("/{id}/select-guest", h.selectGuest)
		r.Post("/{id}/next", h.next)
		r.Post("/{id}/back", h.back)
		r.Post("/{id}/submit", h.submit)
	})

	s.mux.Get("/v1/catalog/guests", h.listGuests)
	s.mux.Get("/v1/catalog/room-types", h.listRoomTypes)
	s.mux.Put("/v1/context/hotel", h.setActiveHotel)
	s.mux.Get("/v1/context/hotel", h.getActiveHotel)
}

// operatorID identifies the back-office user for the cross-session
// hotel context. Auth is out of scope, so a header stands in.
func operatorID(r *http.Request) string {
	if op := r.Header.Get("X-Operator-ID"); op != "" {
		return op
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeWizardErr maps wizard errors onto the error taxonomy: field
// validation → 422, busy/stale → 409, collaborator failures → 502 with
// the upstream wording when present, unknown session → 404.
func writeWizardErr(w http.ResponseWriter, action string, err error) {
	if fe, ok := domain.AsFieldErrors(err); ok {
		observability.ObserveWizard(action, "invalid")
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(problem{
			Type: "about:blank", Title: "Validation failed",
			Status: http.StatusUnprocessableEntity, Errors: fe,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		observability.ObserveWizard(action, "not_found")
		writeProblem(w, http.StatusNotFound, "Not Found", "wizard session not found")
	case errors.Is(err, domain.ErrNoActiveHotel):
		observability.ObserveWizard(action, "invalid")
		writeProblem(w, http.StatusBadRequest, "No active hotel", "select a hotel before starting a reservation")
	case errors.Is(err, app.ErrBusy):
		observability.ObserveWizard(action, "busy")
		writeProblem(w, http.StatusConflict, "Busy", "the previous request is still in flight")
	case errors.Is(err, app.ErrStaleResult):
		observability.ObserveWizard(action, "stale")
		writeProblem(w, http.StatusConflict, "Discarded", "the wizard changed while the call was in flight")
	default:
		var ce *app.CollaboratorError
		if errors.As(err, &ce) {
			observability.ObserveWizard(action, "upstream_error")
			detail := ce.Message
			if detail == "" {
				detail = ce.Op + " failed, please try again"
			}
			writeProblem(w, http.StatusBadGateway, "Upstream failure", detail)
			return
		}
		observability.ObserveWizard(action, "error")
		writeProblem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

// ---- wizard ----

func (h *Handlers) startWizard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HotelID string `json:"hotel_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body) // empty body is fine

	hotelID := body.HotelID
	if hotelID == "" {
		var err error
		hotelID, err = h.Hotels.Get(r.Context(), operatorID(r))
		if err != nil {
			writeWizardErr(w, "start", err)
			return
		}
	}
	snap, err := h.Wizard.Start(r.Context(), hotelID)
	if err != nil {
		writeWizardErr(w, "start", err)
		return
	}
	observability.ObserveWizard("start", "ok")
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handlers) getWizard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Wizard.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeWizardErr(w, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) cancelWizard(w http.ResponseWriter, r *http.Request) {
	h.Wizard.Cancel(chi.URLParam(r, "id"))
	observability.ObserveWizard("cancel", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// draftUpdateRequest is the wire form of the typed partial update;
// dates travel as YYYY-MM-DD strings.
type draftUpdateRequest struct {
	CheckIn          *string  `json:"check_in"`
	CheckOut         *string  `json:"check_out"`
	OccupantCount    *int     `json:"occupant_count"`
	BookingSource    *string  `json:"booking_source"`
	PaymentStatus    *string  `json:"payment_status"`
	TaxRatePercent   *float64 `json:"tax_rate_percent"`
	DiscountAmount   *float64 `json:"discount_amount"`
	SpecialRequests  *string  `json:"special_requests"`
	GroupBooking     *bool    `json:"group_booking"`
	GroupID          *string  `json:"group_id"`
	CorporateBooking *bool    `json:"corporate_booking"`
	CorporateID      *string  `json:"corporate_id"`
}

func (req *draftUpdateRequest) toUpdate() (domain.DraftUpdate, domain.FieldErrors) {
	fe := domain.NewFieldErrors()
	var upd domain.DraftUpdate
	if req.CheckIn != nil {
		t, err := time.Parse("2006-01-02", *req.CheckIn)
		if err != nil {
			fe.Add("check_in", "date must be YYYY-MM-DD")
		} else {
			upd.CheckIn = &t
		}
	}
	if req.CheckOut != nil {
		t, err := time.Parse("2006-01-02", *req.CheckOut)
		if err != nil {
			fe.Add("check_out", "date must be YYYY-MM-DD")
		} else {
			upd.CheckOut = &t
		}
	}
	if req.BookingSource != nil {
		src := domain.BookingSource(*req.BookingSource)
		upd.BookingSource = &src
	}
	if req.PaymentStatus != nil {
		ps := domain.PaymentStatus(*req.PaymentStatus)
		upd.PaymentStatus = &ps
	}
	upd.OccupantCount = req.OccupantCount
	upd.TaxRatePercent = req.TaxRatePercent
	upd.DiscountAmount = req.DiscountAmount
	upd.SpecialRequests = req.SpecialRequests
	upd.GroupBooking = req.GroupBooking
	upd.GroupID = req.GroupID
	upd.CorporateBooking = req.CorporateBooking
	upd.CorporateID = req.CorporateID
	if len(fe) == 0 {
		return upd, nil
	}
	return upd, fe
}

func (h *Handlers) updateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a JSON draft update")
		return
	}
	upd, fe := req.toUpdate()
	if fe != nil {
		writeWizardErr(w, "update_draft", fe)
		return
	}
	snap, err := h.Wizard.UpdateDraft(chi.URLParam(r, "id"), upd)
	if err != nil {
		writeWizardErr(w, "update_draft", err)
		return
	}
	observability.ObserveWizard("update_draft", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) searchRooms(w http.ResponseWriter, r *http.Request) {
	var filters app.SearchFilters
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "expected JSON search filters")
			return
		}
	}
	snap, err := h.Wizard.SearchRooms(r.Context(), chi.URLParam(r, "id"), filters)
	if err != nil {
		writeWizardErr(w, "search_rooms", err)
		return
	}
	observability.ObserveWizard("search_rooms", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) selectRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomID string `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RoomID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "room_id is required")
		return
	}
	snap, err := h.Wizard.SelectRoom(chi.URLParam(r, "id"), body.RoomID)
	if err != nil {
		writeWizardErr(w, "select_room", err)
		return
	}
	observability.ObserveWizard("select_room", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) selectGuest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GuestID string `json:"guest_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GuestID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "guest_id is required")
		return
	}
	snap, err := h.Wizard.SelectGuest(chi.URLParam(r, "id"), body.GuestID)
	if err != nil {
		writeWizardErr(w, "select_guest", err)
		return
	}
	observability.ObserveWizard("select_guest", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) next(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Wizard.Next(chi.URLParam(r, "id"))
	if err != nil {
		writeWizardErr(w, "next", err)
		return
	}
	observability.ObserveWizard("next", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) back(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Wizard.Back(chi.URLParam(r, "id"))
	if err != nil {
		writeWizardErr(w, "back", err)
		return
	}
	observability.ObserveWizard("back", "ok")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	record, err := h.Wizard.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWizardErr(w, "submit", err)
		return
	}
	observability.ObserveWizard("submit", "ok")
	writeJSON(w, http.StatusCreated, record)
}

// ---- catalog ----

func (h *Handlers) listGuests(w http.ResponseWriter, r *http.Request) {
	hotelID, err := h.Hotels.Get(r.Context(), operatorID(r))
	if err != nil {
		writeWizardErr(w, "list_guests", err)
		return
	}
	guests, err := h.Catalog.ListGuests(r.Context(), hotelID, domain.GuestQuery{Q: r.URL.Query().Get("q")})
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Upstream failure", "guest lookup failed, please try again")
		return
	}
	writeJSON(w, http.StatusOK, domain.GuestsPage{Items: guests})
}

func (h *Handlers) listRoomTypes(w http.ResponseWriter, r *http.Request) {
	hotelID, err := h.Hotels.Get(r.Context(), operatorID(r))
	if err != nil {
		writeWizardErr(w, "list_room_types", err)
		return
	}
	types, err := h.Catalog.ListRoomTypes(r.Context(), hotelID)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Upstream failure", "room-type lookup failed, please try again")
		return
	}
	writeJSON(w, http.StatusOK, domain.RoomTypesPage{Items: types})
}

// ---- hotel context ----

func (h *Handlers) setActiveHotel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HotelID string `json:"hotel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HotelID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "hotel_id is required")
		return
	}
	if err := h.Hotels.Set(r.Context(), operatorID(r), body.HotelID); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal error", "could not persist hotel selection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hotel_id": body.HotelID})
}

func (h *Handlers) getActiveHotel(w http.ResponseWriter, r *http.Request) {
	hotelID, err := h.Hotels.Get(r.Context(), operatorID(r))
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveHotel) {
			writeProblem(w, http.StatusNotFound, "Not Found", "no hotel selected yet")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hotel_id": hotelID})
}
