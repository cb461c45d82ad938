package types

// ResponseMeta carries run bookkeeping alongside API results.
type ResponseMeta struct {
	RunID      string   `json:"run_id,omitempty"`
	Seed       *uint64  `json:"seed,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}
