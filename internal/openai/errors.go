package openai

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates no bearer token could be resolved; requests fail
// before anything is sent.
var ErrUnauthorized = errors.New("no API credential available")

// ErrNoMatchingModel indicates the focus/size pair has no usable backend model.
var ErrNoMatchingModel = errors.New("no matching model")

// ErrTemperatureOutOfRange indicates the sampling temperature was rejected.
var ErrTemperatureOutOfRange = errors.New("temperature out of valid range")

// RemoteError carries a non-success response from the service, preserving the
// decoded error body verbatim.
type RemoteError struct {
	Status  int
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai error (%s): %s", e.Type, e.Message)
	}
	return fmt.Sprintf("upstream error status %d", e.Status)
}
