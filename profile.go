package doclient

import (
	"bytes"
	"encoding/json"
	"maps"
	"strconv"
	"time"
)

// UserProfile is the identity attached to an authenticated session.
type UserProfile struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Role        UserRole        `json:"role"`
	Email       string          `json:"email,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	Permissions map[string]bool `json:"permissions,omitempty"`
	Extra       map[string]any  `json:"extra,omitempty"`
}

// profileFields lists the keys MergeProfile maps onto typed fields. Anything
// else is kept in Extra.
var profileFields = map[string]bool{
	"id":          true,
	"username":    true,
	"role":        true,
	"email":       true,
	"created_at":  true,
	"permissions": true,
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// MergeProfile builds a profile from a raw backend payload. Server fields win
// over the defaults (role "user"). id and username are required but a missing
// value yields the zero value instead of an error; role, email, created_at
// and permissions are optional; every other key is passed through in Extra
// and never reaches a typed field. Values of the wrong type are ignored.
func MergeProfile(raw map[string]any) *UserProfile {
	p := &UserProfile{Role: RoleUser}

	p.ID = stringID(raw["id"])
	if v, ok := raw["username"].(string); ok {
		p.Username = v
	}
	if v, ok := raw["role"].(string); ok && v != "" {
		p.Role = v
	}
	if v, ok := raw["email"].(string); ok {
		p.Email = v
	}
	if v, ok := raw["created_at"].(string); ok {
		p.CreatedAt = parseTimestamp(v)
	}
	if perms, ok := raw["permissions"].(map[string]any); ok {
		p.Permissions = make(map[string]bool, len(perms))
		for name, enabled := range perms {
			if b, ok := enabled.(bool); ok {
				p.Permissions[name] = b
			}
		}
	}

	for key, val := range raw {
		if profileFields[key] {
			continue
		}
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[key] = val
	}

	return p
}

// IsAdmin checks the profile role
func (p *UserProfile) IsAdmin() bool {
	return p != nil && IsAdminRole(p.Role)
}

// Can checks if the backend granted the named permission
func (p *UserProfile) Can(permission string) bool {
	if p == nil {
		return false
	}
	return p.Permissions[permission]
}

// Clone returns a deep enough copy for callers to hold on to.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		out.CreatedAt = &t
	}
	out.Permissions = maps.Clone(p.Permissions)
	out.Extra = maps.Clone(p.Extra)
	return &out
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

func parseTimestamp(v string) *time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

// decodeObject decodes raw into a generic object. Anything that is not a JSON
// object yields an empty map.
func decodeObject(raw []byte) map[string]any {
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
