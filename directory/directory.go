// Package directory is the static lookup of principals allowed into the
// admin panel.
//
// Verification is a plain lookup and exact comparison. There is no hashing,
// lockout or rate limiting; the directory gates a UI, it is not a security
// boundary.
package directory

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidCredentials is returned when no principal matches the
// identifier/secret pair.
var ErrInvalidCredentials = errors.New("invalid username/email or password")

// Directory is an immutable set of principals.
type Directory struct {
	byID     map[int64]Principal
	byHandle map[string]int64
}

// New builds a Directory. Ids, usernames and emails must be unique across
// all principals, and every principal needs a secret and a known role.
func New(principals ...Principal) (*Directory, error) {
	d := &Directory{
		byID:     make(map[int64]Principal, len(principals)),
		byHandle: make(map[string]int64, 2*len(principals)),
	}
	for _, p := range principals {
		if p.Username == "" && p.Email == "" {
			return nil, fmt.Errorf("principal %d: username or email is required", p.ID)
		}
		if p.Secret == "" {
			return nil, fmt.Errorf("principal %d: secret is required", p.ID)
		}
		if !p.Role.Valid() {
			return nil, fmt.Errorf("principal %d: unknown role %q", p.ID, p.Role)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("principal %d: duplicate id", p.ID)
		}
		for _, h := range []string{p.Username, p.Email} {
			if h == "" {
				continue
			}
			if _, dup := d.byHandle[h]; dup {
				return nil, fmt.Errorf("principal %d: duplicate handle %q", p.ID, h)
			}
			d.byHandle[h] = p.ID
		}
		d.byID[p.ID] = p
	}
	return d, nil
}

// Default returns the built-in directory of the two console accounts.
func Default() *Directory {
	d, err := New(defaultPrincipals...)
	if err != nil {
		panic(err)
	}
	return d
}

var defaultPrincipals = []Principal{
	{
		ID:       1,
		Username: "admin",
		Email:    "admin@hamarasamachar.com",
		Secret:   "123",
		Role:     RoleAdmin,
		Name:     "Admin User",
		Phone:    "+911234567890",
	},
	{
		ID:       2,
		Username: "superadmin",
		Email:    "superadmin@hamarasamachar.com",
		Secret:   "superadmin123",
		Role:     RoleSuperAdmin,
		Name:     "Super Admin",
		Phone:    "+911234567891",
	},
}

// Verify returns the principal whose username or email equals identifier
// and whose secret equals secret. Both comparisons are exact.
func (d *Directory) Verify(identifier, secret string) (Principal, error) {
	id, ok := d.byHandle[identifier]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	p := d.byID[id]
	if subtle.ConstantTimeCompare([]byte(p.Secret), []byte(secret)) != 1 {
		return Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

// Lookup returns the principal with the given id.
func (d *Directory) Lookup(id int64) (Principal, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Principals lists every principal ordered by id, with secrets removed.
func (d *Directory) Principals() []Principal {
	out := make([]Principal, 0, len(d.byID))
	for _, p := range d.byID {
		out = append(out, p.Redacted())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
