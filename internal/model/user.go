package model

import "time"

// Roles recognized by the API.  The role claim of an access token must be
// one of these values; the Ownership/Role filter and RequireRole middleware
// compare against them verbatim.
const (
    RoleCustomer = "customer"
    RoleAgent    = "agent"
    RoleAdmin    = "admin"
)

// ValidRole reports whether s is one of the recognized roles.
func ValidRole(s string) bool {
    switch s {
    case RoleCustomer, RoleAgent, RoleAdmin:
        return true
    }
    return false
}

// Address is the mailing address embedded in a user profile.  It is stored
// as a JSON column; every field is optional.
type Address struct {
    Street  string `json:"street,omitempty"`
    City    string `json:"city,omitempty"`
    State   string `json:"state,omitempty"`
    ZipCode string `json:"zip_code,omitempty"`
    Country string `json:"country,omitempty"`
}

// NotificationPrefs selects which channels a user wants to be notified on.
type NotificationPrefs struct {
    Email bool `json:"email"`
    SMS   bool `json:"sms"`
    Push  bool `json:"push"`
}

// Preferences holds per-user display and notification settings, stored as a
// JSON column on the users table.
type Preferences struct {
    Notifications NotificationPrefs `json:"notifications"`
    Language      string            `json:"language,omitempty"`
    Timezone      string            `json:"timezone,omitempty"`
}

// User represents an application user record as stored in the `users`
// table.  PasswordHash is never serialized; handlers expose users through
// response types that omit it.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – given name.
//  LastName     – family name.
//  Phone        – contact phone number.
//  Role         – one of customer, agent, admin.
//  IsActive     – whether the account is active; inactive accounts are
//                 rejected by the auth gate with 403.
//  Address      – mailing address (JSON column).
//  Preferences  – notification/display settings (JSON column).
//  LastLogin    – last successful login, nil before the first login.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64      `json:"id"`
    Email        string      `json:"email"`
    PasswordHash string      `json:"-"`
    FirstName    string      `json:"first_name"`
    LastName     string      `json:"last_name"`
    Phone        string      `json:"phone,omitempty"`
    Role         string      `json:"role"`
    IsActive     bool        `json:"is_active"`
    Address      Address     `json:"address"`
    Preferences  Preferences `json:"preferences"`
    LastLogin    *time.Time  `json:"last_login,omitempty"`
    CreatedAt    time.Time   `json:"created_at"`
    UpdatedAt    time.Time   `json:"updated_at"`
}

// FullName joins the first and last name for display in activity feeds.
func (u User) FullName() string {
    if u.FirstName == "" {
        return u.LastName
    }
    if u.LastName == "" {
        return u.FirstName
    }
    return u.FirstName + " " + u.LastName
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each refresh
// token belongs to a user; only the SHA-256 hash of the raw value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
