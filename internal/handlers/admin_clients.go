package handlers

import (
	"net/http"

	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// ListClients handles GET /api/admin/clients
func (h *AdminHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.clients.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toClientSummaryResponses(list))
}

// UpdateClient handles PUT /api/admin/clients/{id}
func (h *AdminHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := decodeAndValidate(w, r, maxBodyBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client, err := h.clients.Update(r.Context(), actor(r), id, req.Name, req.Phone)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ClientResponse{ID: client.ID, Name: client.Name, Phone: client.Phone})
}

// MergeClients handles POST /api/admin/clients/merge
func (h *AdminHandler) MergeClients(w http.ResponseWriter, r *http.Request) {
	var req MergeClientsRequest
	if err := decodeAndValidate(w, r, maxBodyBytes, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	moved, err := h.clients.Merge(r.Context(), actor(r), req.SourceClientID, req.TargetClientID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MergeClientsResponse{
		TargetClientID:    req.TargetClientID,
		MovedAppointments: moved,
	})
}

// DeleteClient handles DELETE /api/admin/clients/{id}
// The client's appointments are deleted with it.
func (h *AdminHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.clients.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
