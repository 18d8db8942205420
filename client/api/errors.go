package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches responses with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s, body: %s", e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
