package ports

// RefreshTrigger asks for a background refresh of derived state.
// Request must not block on the refresh itself.
type RefreshTrigger interface {
	Request()
}
