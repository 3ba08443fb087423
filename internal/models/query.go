package models

import "fmt"

// AskRequest is a question against the indexed corpus. Zero values for K and
// FetchPoolSize mean "use the configured defaults". Lambda is a pointer so an
// explicit 0 (pure diversity) is distinguishable from an omitted field.
type AskRequest struct {
	Question      string   `json:"question"`
	K             int      `json:"k,omitempty"`
	FetchPoolSize int      `json:"fetch_pool_size,omitempty"`
	Lambda        *float64 `json:"lambda,omitempty"` // relevance/diversity trade-off in [0, 1]
}

// Validate checks request fields. Unlike configuration validation this is
// per-request: bad values are rejected, not clamped.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.K < 0 {
		return fmt.Errorf("k cannot be negative")
	}
	if r.FetchPoolSize != 0 && r.FetchPoolSize < r.K {
		return fmt.Errorf("fetch_pool_size (%d) must be at least k (%d)", r.FetchPoolSize, r.K)
	}
	if r.Lambda != nil && (*r.Lambda < 0 || *r.Lambda > 1) {
		return fmt.Errorf("lambda must be within [0, 1], got %g", *r.Lambda)
	}
	return nil
}
