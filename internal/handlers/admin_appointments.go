package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/services"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// DefaultStalePendingMinutes is used when olderThanMinutes is absent.
const DefaultStalePendingMinutes = 30

// ListAppointments handles GET /api/admin/appointments?month=YYYY-MM&limit=&page=
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := queryInt(w, q.Get("limit"), services.DefaultAppointmentPageSize, "limit")
	if !ok {
		return
	}
	page, ok := queryInt(w, q.Get("page"), 0, "page")
	if !ok {
		return
	}

	list, err := h.appointments.List(r.Context(), q.Get("month"), limit, page)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAppointmentResponses(list))
}

// ListStalePending handles GET /api/admin/appointments/stale-pending?olderThanMinutes=30
func (h *AdminHandler) ListStalePending(w http.ResponseWriter, r *http.Request) {
	minutes, ok := queryInt(w, r.URL.Query().Get("olderThanMinutes"), DefaultStalePendingMinutes, "olderThanMinutes")
	if !ok {
		return
	}
	if minutes < 0 {
		pkghttp.WriteBadRequest(w, "olderThanMinutes must not be negative")
		return
	}

	list, err := h.appointments.ListStalePending(r.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toStalePendingResponses(list))
}

// UpdateAppointmentStatus handles PATCH /api/admin/appointments/{id}/status
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateAppointmentStatusRequest
	if err := decodeAndValidate(w, r, maxBodyBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	status, err := models.ParseAppointmentStatus(req.Status)
	if err != nil {
		pkghttp.WriteBadRequest(w, "unknown status")
		return
	}

	appt, err := h.appointments.UpdateStatus(r.Context(), actor(r), id, status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// UpdateAppointment handles PUT /api/admin/appointments/{id}
func (h *AdminHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := decodeAndValidate(w, r, maxBodyBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	appt, err := h.appointments.Update(r.Context(), actor(r), id, services.AppointmentUpdate{
		ClientName:    req.ClientName,
		ClientPhone:   req.ClientPhone,
		ServiceID:     req.ServiceID,
		AppointmentAt: req.AppointmentAt,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// DeleteAppointment handles DELETE /api/admin/appointments/{id}
func (h *AdminHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.appointments.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, raw string, def int, name string) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		pkghttp.WriteBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}
