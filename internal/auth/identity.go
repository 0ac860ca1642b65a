package auth

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"taskpad/internal/storage"
)

// Identity is the authenticated user record
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name returns the display name, falling back to the capitalized e-mail
// local part, or "Guest" when nothing is known.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(i.Email, "@")
	if local == "" {
		return "Guest"
	}
	r, size := utf8.DecodeRuneInString(local)
	return string(unicode.ToUpper(r)) + local[size:]
}

// Initials returns up to two upper-cased letters of Name
func (i Identity) Initials() string {
	runes := []rune(i.Name())
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

// ReadSession returns the identity persisted under SessionKey, or nil.
func ReadSession(kv storage.KV) (*Identity, error) {
	raw, ok, err := kv.Get(SessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, err
	}
	if id.ID == "" {
		return nil, nil
	}
	return &id, nil
}

func writeSession(kv storage.KV, id *Identity) error {
	if id == nil {
		return kv.Delete(SessionKey)
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return kv.Set(SessionKey, string(data))
}
