package service

import "errors"

// Engine error taxonomy. Handlers map these onto client error codes;
// anything else is a server error.
var (
	// ErrInvalidInput flags malformed start parameters (e.g. an empty question set).
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotFound flags an unknown, expired, or already-closed session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionNotFound flags a question id outside the session's frozen set.
	ErrQuestionNotFound = errors.New("question not found in session")
	// ErrInvalidState flags an operation the session's mode or state forbids.
	ErrInvalidState = errors.New("invalid session state")
)
