// Package storage abstracts the durable client-side store that survives
// application restarts (localStorage in a browser host, a keychain or a
// plain file elsewhere). The credential store persists token material
// through it and restores the material on start-up.
package storage

// Storage is a flat key-value string store. Implementations must be safe
// for concurrent use. A missing key is reported through the boolean, never
// as an error: the underlying hosts (web storage APIs) have no failure
// mode worth modelling.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}
