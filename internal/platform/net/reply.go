package net

import (
	"net/http"

	perr "newswire/internal/platform/errors"
)

// Wire is the shared envelope transports serialize
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// OK builds a 200 envelope
func OK(data any, reqID string) (int, Wire) {
	w := Wire{RequestID: reqID, Data: data}
	w.StatusCode = http.StatusOK
	w.Status = http.StatusText(http.StatusOK)
	return http.StatusOK, w
}

// NoContent builds a 204 envelope
func NoContent(reqID string) (int, Wire) {
	w := Wire{RequestID: reqID}
	w.StatusCode = http.StatusNoContent
	w.Status = http.StatusText(http.StatusNoContent)
	return http.StatusNoContent, w
}

// Error builds an error envelope; nil degrades to OK
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		return OK(nil, reqID)
	}
	status := perr.HTTPStatus(err)
	pw := perr.WireFrom(err)
	w := Wire{RequestID: reqID, Code: pw.Code, Error: pw.Message}
	w.StatusCode = status
	w.Status = http.StatusText(status)
	return status, w
}

// HTTPStatus maps an error to its transport status, nil is 200
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return perr.HTTPStatus(err)
}
