package session

// User is the authenticated profile as the backend reports it.
type User struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	IsVerified bool   `json:"is_verified"`
}

// Session pairs the opaque auth token with the user it belongs to. The rest
// of the application only ever holds a read copy; the Service owns the state.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Event signals a session lifecycle transition to subscribers.
type Event int

const (
	// EventLogin fires after a session is established and persisted.
	EventLogin Event = iota + 1
	// EventLogout fires after the persisted session is cleared. Dependent
	// caches must treat it as a hard reset.
	EventLogout
)
