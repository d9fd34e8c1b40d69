package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Error Codes Reference
//
// Known sentinel errors are matched first with errors.Is. Anything else falls
// through to case-insensitive substring patterns over the error text, so
// driver errors that never pass through a sentinel still get a useful code.
//
// Record errors (REC):
//
//	REC001 - Record not found
//	REC002 - Unknown entity type
//
// Validation errors (VAL):
//
//	VAL001 - Invalid date format
//	VAL002 - Invalid number format
//	VAL003 - Required field is empty
//	VAL007 - Record failed validation
//	VAL008 - Natural key already in use
//
// Import errors (IMP):
//
//	IMP001 - Too many concurrent imports
//	IMP002 - Batch rejected, nothing imported
//	IMP003 - File could not be parsed
//	IMP004 - File too large
//	IMP005 - Empty file
//
// Database errors (DB):
//
//	DB001 - Duplicate key at the database level
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//	DB008 - Transaction failed and was rolled back
//
// Audit and access (AUD, AUTH, RATE):
//
//	AUD001 - Audit entry rejected
//	AUTH001 - Missing actor identity
//	RATE001 - Too many requests
//
// ERR000 is the fallback. Support staff should check application logs for the
// original technical error when users report it.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order; more specific sentinels come first.
var sentinelMessages = []sentinelMessage{
	{ErrDuplicate, UserMessage{
		Message: "A record with this identifier already exists",
		Action:  "Use a different identifier or update the existing record",
		Code:    "VAL008",
	}},
	{ErrValidation, UserMessage{
		Message: "The record failed validation",
		Action:  "Fix the listed fields and try again",
		Code:    "VAL007",
	}},
	{ErrBatchValidation, UserMessage{
		Message: "The import was rejected and nothing was saved",
		Action:  "Fix the listed rows and upload the file again",
		Code:    "IMP002",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{ErrNotFound, UserMessage{
		Message: "Record not found",
		Action:  "It may have been deleted. Refresh and try again",
		Code:    "REC001",
	}},
	{ErrUnknownEntity, UserMessage{
		Message: "Unknown record type",
		Action:  "Check the entity name in the request",
		Code:    "REC002",
	}},
	{ErrInvalidAudit, UserMessage{
		Message: "The change could not be recorded in the audit trail",
		Action:  "Please contact support",
		Code:    "AUD001",
	}},
	{ErrMissingActor, UserMessage{
		Message: "No user identity was supplied",
		Action:  "Sign in again and retry",
		Code:    "AUTH001",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched with strings.Contains on the lowercased error.
// The first match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this identifier already exists",
		Action:  "Review your data for duplicate key values",
		Code:    "DB001",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}},
	{"invalid number", UserMessage{
		Message: "Invalid number format detected",
		Action:  "Remove currency symbols and use standard decimal format",
		Code:    "VAL002",
	}},
	{"is required", UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required fields have values",
		Code:    "VAL003",
	}},
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with a header row",
		Code:    "IMP003",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "IMP004",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with data rows",
		Code:    "IMP005",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// transactionMessage is used for ErrTransactionFailed when nothing more
// specific matches the underlying cause.
var transactionMessage = UserMessage{
	Message: "The change could not be saved and was rolled back",
	Action:  "Please try again",
	Code:    "DB008",
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("update: %w", ErrNotFound))
//	// msg.Code == "REC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrTransactionFailed) {
		return transactionMessage
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
