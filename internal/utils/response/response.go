// Package response provides helpers for writing JSON HTTP responses.
//
// Every handler answers with JSON. Error responses are fixed bodies: the
// shape and message depend only on the status code, never on the request
// or on the underlying error. Details belong in the log, not in the body:
//
//	{ "success": false, "error": 404, "message": "Not Found" }
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the fixed error envelope.
type Response struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// messages holds the fixed text for every status an error responder emits.
var messages = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusForbidden:           "Not Allowed",
	http.StatusNotFound:            "Not Found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusInternalServerError: "Internal Server Error",
}

// WriteJSON writes data as JSON with the given status code.
// Headers must be set before WriteHeader, and WriteHeader before the body.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Fixed returns the error envelope for status. Statuses without a fixed
// body fall back to the 500 body.
func Fixed(status int) (int, Response) {
	msg, ok := messages[status]
	if !ok {
		status = http.StatusInternalServerError
		msg = messages[status]
	}
	return status, Response{Success: false, Error: status, Message: msg}
}

// WriteError writes the fixed error body for status.
func WriteError(w http.ResponseWriter, status int) {
	status, body := Fixed(status)
	_ = WriteJSON(w, status, body)
}

// BadRequest writes the 400 body.
func BadRequest(w http.ResponseWriter) { WriteError(w, http.StatusBadRequest) }

// Forbidden writes the 403 body. It completes the fixed error set; no
// route raises it today.
func Forbidden(w http.ResponseWriter) { WriteError(w, http.StatusForbidden) }

// NotFound writes the 404 body.
func NotFound(w http.ResponseWriter) { WriteError(w, http.StatusNotFound) }

// MethodNotAllowed writes the 405 body.
func MethodNotAllowed(w http.ResponseWriter) { WriteError(w, http.StatusMethodNotAllowed) }

// InternalServerError writes the 500 body.
func InternalServerError(w http.ResponseWriter) { WriteError(w, http.StatusInternalServerError) }

// DescribeValidation turns validator field errors into one readable line
// for the log, e.g. "field last_name is required, field address is too long".
func DescribeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", e.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s is too long (max %s)", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return strings.Join(msgs, ", ")
}
