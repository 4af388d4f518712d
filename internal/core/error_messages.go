package core

// error_messages.go maps core errors to user-facing messages with codes for
// support reference.
//
//	REQ001 - Malformed request: path segment count or numeric argument is wrong
//	REQ002 - Invalid payload: body is not a JSON object of scalar values
//	REQ003 - Unknown column: payload names a column the sheet does not declare
//	REQ004 - Reserved column: insert payload carries the id column
//	REQ005 - Unsupported method: verb is not GET/POST/PATCH/DELETE/OPTIONS
//	REQ006 - Request cancelled or timed out before the store answered
//	REQ007 - Too many inserts: no insert slot freed up in time
//	NF001  - Sheet not found: sheet index is outside the document
//	NF002  - Row not found: no row carries the requested id
//	STORE001 - Store failure: the sheet store rejected or failed the call
//
// Errors are matched with errors.Is in table order; the first match wins.

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformedRequest reports a path with the wrong shape.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrInvalidPayload reports a request body that is not a flat JSON object.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownColumn reports a payload key that is not a declared column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrReservedColumn reports a caller-supplied id on insert.
	ErrReservedColumn = errors.New("reserved column")

	// ErrUnsupportedMethod reports an unrecognized HTTP verb.
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrSheetNotFound reports a sheet index outside the document.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrRowNotFound reports an identifier that matches no row.
	ErrRowNotFound = errors.New("row not found")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMapping struct {
	target error
	msg    UserMessage
}

var errorMappings = []errorMapping{
	{ErrMalformedRequest, UserMessage{
		Message: "The request path is not valid",
		Action:  "Check the URL segments after the API prefix",
		Code:    "REQ001",
	}},
	{ErrInvalidPayload, UserMessage{
		Message: "The request body is not a valid JSON object",
		Action:  "Send a flat JSON object of column names to string or number values",
		Code:    "REQ002",
	}},
	{ErrUnknownColumn, UserMessage{
		Message: "The request names a column the sheet does not have",
		Action:  "Use the column names returned by get-rows",
		Code:    "REQ003",
	}},
	{ErrReservedColumn, UserMessage{
		Message: "The id column is assigned automatically",
		Action:  "Remove the id field from the request body",
		Code:    "REQ004",
	}},
	{ErrUnsupportedMethod, UserMessage{
		Message: "Unrecognized HTTP method",
		Action:  "Use one of GET, POST, PATCH, DELETE or OPTIONS",
		Code:    "REQ005",
	}},
	{ErrTooManyInserts, UserMessage{
		Message: "Too many inserts are in progress",
		Action:  "Retry the request shortly",
		Code:    "REQ007",
	}},
	{context.Canceled, UserMessage{
		Message: "The request was cancelled",
		Action:  "Please try again",
		Code:    "REQ006",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The request timed out",
		Action:  "Please try again later",
		Code:    "REQ006",
	}},
	{ErrSheetNotFound, UserMessage{
		Message: "The sheet does not exist",
		Action:  "List sheets with get-doc-info and use a valid index",
		Code:    "NF001",
	}},
	{ErrRowNotFound, UserMessage{
		Message: "No row has the requested id",
		Action:  "Look the row up with find-row-by-id first",
		Code:    "NF002",
	}},
}

// storeFailure is returned for errors that match no known kind.
var storeFailure = UserMessage{
	Message: "The sheet store could not complete the request",
	Action:  "Please try again or contact support",
	Code:    "STORE001",
}

// MapError converts an error to a user-friendly message. Errors that match no
// known kind are upstream store failures and map to STORE001.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return storeFailure
}

// IsClientError reports whether err was caused by the request itself rather
// than by the store.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != storeFailure.Code
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
