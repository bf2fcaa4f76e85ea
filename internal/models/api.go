// Package models defines the core data structures for QuitPrep.
//
// This file holds the JSON envelope types for the HTTP API shared between
// the server and the dialogue engine.
package models

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed API operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Tracker is the wire-level conversation state the dialogue engine sends with
// each action invocation: the raw slot map plus the name of the most recently
// sent bot prompt.
type Tracker struct {
	SenderID      string            `json:"sender_id"`
	Slots         map[string]string `json:"slots"`
	LastUtterance string            `json:"last_utterance,omitempty"`
}

// WebhookRequest is one action invocation from the dialogue engine.
type WebhookRequest struct {
	NextAction string  `json:"next_action"`
	Tracker    Tracker `json:"tracker"`
}
