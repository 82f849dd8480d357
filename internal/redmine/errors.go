package redmine

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Redmine API, kept after the retry
// budget is exhausted.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("redmine API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("redmine API error: status %d - %s", e.StatusCode, e.Body)
}

// UserMessage maps an error to the message shown to the user. Auth,
// permission and not-found failures get specific wording; everything else
// falls back to the error text itself.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return "authentication failed: check your API key"
		case http.StatusForbidden:
			return "access denied: your account lacks permission for this resource"
		case http.StatusNotFound:
			return "not found: the issue or project does not exist"
		}
	}
	return err.Error()
}
