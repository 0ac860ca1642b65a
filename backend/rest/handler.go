package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"taskpad/backend"
	"taskpad/internal/utils"
)

// handler serves a backend.ItemStore as a REST resource
type handler struct {
	store backend.ItemStore
}

// NewHandler returns a router serving store under /{resource}. An empty
// resource uses DefaultResource.
func NewHandler(store backend.ItemStore, resource string) http.Handler {
	if resource == "" {
		resource = DefaultResource
	}
	h := &handler{store: store}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	items := r.PathPrefix("/" + resource).Subrouter()
	items.HandleFunc("", h.list).Methods(http.MethodGet)
	items.HandleFunc("", h.create).Methods(http.MethodPost)
	items.HandleFunc("/{id}", h.update).Methods(http.MethodPut)
	items.HandleFunc("/{id}", h.remove).Methods(http.MethodDelete)
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("userId")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	items, err := h.store.List(r.Context(), ownerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	wire := make([]wireItem, 0, len(items))
	for _, it := range items {
		wire = append(wire, fromItem(it))
	}
	writeJSON(w, http.StatusOK, wire)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var body wireItem
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.store.Create(r.Context(), body.toDraft())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromItem(*item))
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var body wirePatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.store.Update(r.Context(), mux.Vars(r)["id"], body.toPatch())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromItem(*item))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store error kinds onto HTTP status codes
func writeStoreError(w http.ResponseWriter, err error) {
	switch utils.KindOf(err) {
	case utils.KindNotFound:
		writeError(w, http.StatusNotFound, "not found")
	case utils.KindValidation:
		var e *utils.Error
		msg := err.Error()
		if errors.As(err, &e) && e.Err != nil {
			msg = e.Err.Error()
		}
		writeError(w, http.StatusBadRequest, msg)
	default:
		utils.Debugf("item handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wireError{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
