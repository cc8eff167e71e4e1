package arcgis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrService matches every failure of a remote ArcGIS REST call.
var ErrService = errors.New("arcgis: service error")

// APIError is the JSON error envelope ArcGIS REST endpoints return with HTTP 200.
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// ServiceError describes a failed REST call: a transport failure, a non-OK
// status, an undecodable body or an error envelope.
type ServiceError struct {
	Op         string
	URL        string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "arcgis %s", e.Op)
	if e.URL != "" {
		fmt.Fprintf(&b, " %s", e.URL)
	}
	switch {
	case e.StatusCode != 0:
		fmt.Fprintf(&b, ": received non-OK HTTP status %d", e.StatusCode)
	case e.Message != "":
		fmt.Fprintf(&b, ": API error")
		if e.Code != 0 {
			fmt.Fprintf(&b, " %d", e.Code)
		}
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is makes every ServiceError match ErrService.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

func apiError(op, url string, apiErr *APIError) error {
	msg := apiErr.Message
	if len(apiErr.Details) > 0 {
		msg += " (" + strings.Join(apiErr.Details, "; ") + ")"
	}
	return &ServiceError{Op: op, URL: url, Code: apiErr.Code, Message: msg}
}
