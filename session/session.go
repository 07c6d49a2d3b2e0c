// Package session owns the client's belief about who is logged in. The
// lifecycle is Uninitialized → Initializing → Ready, entered exactly once;
// after that the authenticated flag may flip many times (login, logout,
// recovery failure) without the phase changing. The rendering layer blocks
// on Initialize once at start-up and gates UI on the snapshot.
package session

// Phase tracks start-up progress, not authentication.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitializing  Phase = "initializing"
	PhaseReady         Phase = "ready"
)

// User is the identity as known to the client.
type User struct {
	ID       int64
	Username string
	Email    string
}

// Session is an immutable snapshot. IsAuthenticated implies User != nil.
type Session struct {
	Phase           Phase
	IsAuthenticated bool
	User            *User
}
