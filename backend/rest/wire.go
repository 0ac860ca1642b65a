package rest

import (
	"time"

	"taskpad/backend"
)

// wireItem is the JSON shape of an item on the remote API
type wireItem struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// wirePatch carries only the fields present in a backend.Patch
type wirePatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// wireError is the body returned alongside non-2xx responses
type wireError struct {
	Error string `json:"error"`
}

func fromItem(it backend.Item) wireItem {
	return wireItem{
		ID:          it.ID,
		UserID:      it.OwnerID,
		Title:       it.Title,
		Description: it.Description,
		Status:      string(it.Status),
		Priority:    string(it.Priority),
		Category:    string(it.Category),
		CreatedAt:   it.CreatedAt,
	}
}

func (w wireItem) toItem() backend.Item {
	return backend.Item{
		ID:          w.ID,
		OwnerID:     w.UserID,
		Title:       w.Title,
		Description: w.Description,
		Status:      backend.Status(w.Status),
		Priority:    backend.Priority(w.Priority),
		Category:    backend.Category(w.Category),
		CreatedAt:   w.CreatedAt,
	}
}

func fromDraft(d backend.Draft) wireItem {
	return wireItem{
		UserID:      d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		Status:      string(d.Status),
		Priority:    string(d.Priority),
		Category:    string(d.Category),
	}
}

func (w wireItem) toDraft() backend.Draft {
	return backend.Draft{
		OwnerID:     w.UserID,
		Title:       w.Title,
		Description: w.Description,
		Status:      backend.Status(w.Status),
		Priority:    backend.Priority(w.Priority),
		Category:    backend.Category(w.Category),
	}
}

func fromPatch(p backend.Patch) wirePatch {
	return wirePatch{
		Title:       p.Title,
		Description: p.Description,
		Status:      stringPtr(p.Status),
		Priority:    stringPtr(p.Priority),
		Category:    stringPtr(p.Category),
	}
}

func (w wirePatch) toPatch() backend.Patch {
	return backend.Patch{
		Title:       w.Title,
		Description: w.Description,
		Status:      typedPtr[backend.Status](w.Status),
		Priority:    typedPtr[backend.Priority](w.Priority),
		Category:    typedPtr[backend.Category](w.Category),
	}
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func typedPtr[T ~string](v *string) *T {
	if v == nil {
		return nil
	}
	t := T(*v)
	return &t
}
