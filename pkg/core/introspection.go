package core

// ContextState exposes the tracked set of a persistence context for observability.
type ContextState struct {
	Backend       string         `json:"backend"`
	Tracked       map[string]int `json:"tracked"`
	InTransaction bool           `json:"in_transaction"`
	Closed        bool           `json:"closed"`
}
