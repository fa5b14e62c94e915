package alphavantage

import "fmt"

// UpstreamError reports a non-200 response from Alpha Vantage.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Alpha Vantage API error: %d", e.StatusCode)
}

// Upstream marks the error as coming from the remote data provider.
func (e *UpstreamError) Upstream() bool { return true }
