package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmcleod/newsdesk/directory"
)

// Keys written into a backend's namespace.
const (
	tokenKey   = "token"
	profileKey = "profile"
	metaKey    = "session"
)

var recordKeys = []string{tokenKey, profileKey, metaKey}

// Profile is the denormalized copy of a principal's display fields. It is
// edited through UpdateProfile and deliberately diverges from the directory.
type Profile struct {
	ID       int64          `json:"id"`
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     directory.Role `json:"role"`
	Phone    string         `json:"phone"`
}

// ProfileOf snapshots the display fields of p.
func ProfileOf(p directory.Principal) Profile {
	return Profile{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Name:     p.Name,
		Role:     p.Role,
		Phone:    p.Phone,
	}
}

// ProfilePatch lists the profile fields a caller may change. Nil fields are
// left untouched. Id and role are fixed for the lifetime of a session.
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Username == nil && p.Email == nil && p.Phone == nil
}

// Apply merges the patch into prof and returns the result.
func (p ProfilePatch) Apply(prof Profile) Profile {
	if p.Name != nil {
		prof.Name = *p.Name
	}
	if p.Username != nil {
		prof.Username = *p.Username
	}
	if p.Email != nil {
		prof.Email = *p.Email
	}
	if p.Phone != nil {
		prof.Phone = *p.Phone
	}
	return prof
}

// Meta is the session metadata persisted under the "session" key.
type Meta struct {
	PrincipalID int64          `json:"principalId"`
	Role        directory.Role `json:"role"`
	IssuedAt    time.Time      `json:"issuedAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

// Expired reports whether the session is void at now.
func (m Meta) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// Record is a complete session as held by one backend.
type Record struct {
	Token   string
	Profile Profile
	Meta    Meta
	Backend Kind
}

func encodeRecord(rec Record) (map[string][]byte, error) {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	meta := rec.Meta
	meta.IssuedAt = meta.IssuedAt.UTC()
	meta.ExpiresAt = meta.ExpiresAt.UTC()
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding session meta: %w", err)
	}
	return map[string][]byte{
		tokenKey:   []byte(rec.Token),
		profileKey: profile,
		metaKey:    metaJSON,
	}, nil
}

// decodeRecord rebuilds a Record from the raw keys of one backend. Missing
// keys, bad JSON and absent expiry all count as corruption.
func decodeRecord(kind Kind, raw map[string][]byte) (Record, error) {
	for _, k := range recordKeys {
		if len(raw[k]) == 0 {
			return Record{}, fmt.Errorf("%s: missing %q: %w", kind, k, ErrCorruptSession)
		}
	}
	rec := Record{Token: string(raw[tokenKey]), Backend: kind}
	if err := json.Unmarshal(raw[profileKey], &rec.Profile); err != nil {
		return Record{}, fmt.Errorf("%s: profile: %v: %w", kind, err, ErrCorruptSession)
	}
	if err := json.Unmarshal(raw[metaKey], &rec.Meta); err != nil {
		return Record{}, fmt.Errorf("%s: session meta: %v: %w", kind, err, ErrCorruptSession)
	}
	if rec.Meta.ExpiresAt.IsZero() {
		return Record{}, fmt.Errorf("%s: session meta has no expiry: %w", kind, ErrCorruptSession)
	}
	if rec.Profile.ID == 0 || !rec.Profile.Role.Valid() {
		return Record{}, fmt.Errorf("%s: profile has no id or role: %w", kind, ErrCorruptSession)
	}
	if rec.Meta.PrincipalID != rec.Profile.ID {
		return Record{}, fmt.Errorf("%s: session meta principal %d does not match profile %d: %w",
			kind, rec.Meta.PrincipalID, rec.Profile.ID, ErrCorruptSession)
	}
	return rec, nil
}
