// Package apierror normalizes API failures into a single error type.
//
// The shape of an error payload is inspected once, where the response is read,
// and recorded as a Kind. Callers switch on the Kind instead of probing the body.
package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind discriminates the error payload shapes
type Kind int

const (
	// KindGeneric is used when the payload carries nothing displayable
	KindGeneric Kind = iota
	// KindFields is a field-keyed validation map
	KindFields
	// KindMessage is a single message string
	KindMessage
	// KindTransport means no HTTP response was received
	KindTransport
)

const (
	GenericMessage   = "An unexpected error occurred. Please try again."
	TransportMessage = "Network error. Please try again."
	separator        = ", "
)

// keys that carry a lone message rather than a field error
var messageKeys = map[string]bool{"detail": true, "message": true, "error": true}

// FieldError holds the messages reported for one field
type FieldError struct {
	Field    string
	Messages []string
}

// Error is a normalized API failure
type Error struct {
	Kind    Kind
	Status  int
	Fields  []FieldError
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Display())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Messages flattens the error into an ordered list. Field errors keep the key
// order of the upstream document.
func (e *Error) Messages() []string {
	if e.Kind != KindFields {
		return []string{e.Message}
	}

	var out []string
	for _, f := range e.Fields {
		out = append(out, f.Messages...)
	}
	return out
}

// Display returns the message shown to the user
func (e *Error) Display() string {
	if e.Kind == KindFields {
		return strings.Join(e.Messages(), separator)
	}
	return e.Message
}

// FromResponse classifies an error response body
func FromResponse(status int, body []byte) *Error {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '"':
			var msg string
			if err := json.Unmarshal(trimmed, &msg); err == nil && msg != "" {
				return &Error{Kind: KindMessage, Status: status, Message: msg}
			}
		case '{':
			if e := fromObject(status, trimmed); e != nil {
				return e
			}
		}
	}

	return &Error{Kind: KindGeneric, Status: status, Message: GenericMessage}
}

// FromTransport wraps a failure that produced no HTTP response
func FromTransport(err error) *Error {
	return &Error{Kind: KindTransport, Message: TransportMessage, Err: err}
}

// From converts any error into an *Error, keeping one that is already normalized
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindGeneric, Message: GenericMessage, Err: err}
}

// IsUnauthorized reports whether err is a 401 API error
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func fromObject(status int, body []byte) *Error {
	fields, ok := decodeOrdered(body)
	if !ok || len(fields) == 0 {
		return nil
	}

	// {"detail": "..."} and friends
	if len(fields) == 1 && messageKeys[fields[0].Field] && len(fields[0].Messages) == 1 {
		return &Error{Kind: KindMessage, Status: status, Message: fields[0].Messages[0]}
	}

	// envelope shaped failure: {"success": false, "message": "...", "errors": [...]}
	if env, ok := envelopeError(fields); ok {
		env.Status = status
		return env
	}

	for _, f := range fields {
		if f.Messages == nil {
			return nil
		}
	}
	return &Error{Kind: KindFields, Status: status, Fields: fields}
}

// decodeOrdered walks a JSON object keeping its key order. Values that are
// neither strings nor arrays of strings yield a FieldError with nil Messages.
func decodeOrdered(body []byte) ([]FieldError, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	var fields []FieldError
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		fields = append(fields, FieldError{Field: key, Messages: stringsOf(raw)})
	}

	return fields, true
}

func stringsOf(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list
	}

	return nil
}

func envelopeError(fields []FieldError) (*Error, bool) {
	var (
		hasSuccess bool
		message    string
		errs       []string
	)
	for _, f := range fields {
		switch f.Field {
		case "success":
			hasSuccess = true
		case "message":
			if len(f.Messages) == 1 {
				message = f.Messages[0]
			}
		case "errors":
			errs = f.Messages
		}
	}

	if !hasSuccess {
		return nil, false
	}
	if len(errs) > 0 {
		return &Error{Kind: KindFields, Fields: []FieldError{{Field: "errors", Messages: errs}}}, true
	}
	if message != "" {
		return &Error{Kind: KindMessage, Message: message}, true
	}
	return &Error{Kind: KindGeneric, Message: GenericMessage}, true
}
