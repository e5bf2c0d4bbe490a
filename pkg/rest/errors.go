package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Side classifies a non-2xx response by status range. It is diagnostic
// metadata only: retry decisions are made from the status code itself.
type Side string

const (
	// SideClient marks 4xx responses.
	SideClient Side = "Client"

	// SideServer marks 5xx responses.
	SideServer Side = "Server"
)

// HTTPError is returned for any non-2xx response. The message is taken
// from the exchange's JSON error body when one can be decoded, otherwise
// from the HTTP status text.
type HTTPError struct {
	Status  int
	Side    Side
	Message string
	URL     string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s Error: %s! URL: %s", e.Status, e.Side, e.Message, e.URL)
}

// TransportError is returned when the network layer exhausts the retry
// budget without ever obtaining an HTTP response.
type TransportError struct {
	URL      string
	Attempts uint
	Err      error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v! URL: %s", e.Attempts, e.Err, e.URL)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

func errorSide(status int) Side {
	if status >= 500 {
		return SideServer
	}
	return SideClient
}

// newHTTPError translates a non-2xx response body into an HTTPError.
// Trailing punctuation is stripped from exchange-supplied messages so
// callers see a consistent form.
func newHTTPError(status int, body []byte, url string) *HTTPError {
	message := http.StatusText(status)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = strings.TrimRight(payload.Message, ".?!")
	}
	if message == "" {
		message = "Unknown"
	}

	return &HTTPError{
		Status:  status,
		Side:    errorSide(status),
		Message: message,
		URL:     url,
	}
}
