package shakeout

import "fmt"

// NetworkError indicates the provider could not be reached at the transport level.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("shakeout: network failure calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response from the provider API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("shakeout: provider error (%d): %s", e.StatusCode, e.Message)
}

// InvalidResponseError indicates a 2xx response whose body was not parseable JSON.
type InvalidResponseError struct {
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("shakeout: invalid response body: %v", e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }
