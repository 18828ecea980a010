// Package errs defines structured error codes for monitoring.
//
// Every error that crosses an external boundary (config, fetch, LLM, images,
// delivery, status store) carries a predefined Code so automated alerting can
// key on stable identifiers without parsing untrusted message text.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies an error category for structured reporting.
type Code string

const (
	// Configuration errors
	ConfigFileNotFound    Code = "CONFIG_FILE_NOT_FOUND"
	ConfigInvalidJSON     Code = "CONFIG_INVALID_JSON"
	ConfigVersionMismatch Code = "CONFIG_VERSION_MISMATCH"
	ConfigMissingField    Code = "CONFIG_MISSING_REQUIRED_FIELD"
	ConfigInvalidValue    Code = "CONFIG_INVALID_VALUE"

	// Upstream fetch (bird CLI) errors
	FetchAuthFailed    Code = "FETCH_AUTH_FAILED"
	FetchRateLimited   Code = "FETCH_RATE_LIMITED"
	FetchNetworkError  Code = "FETCH_NETWORK_ERROR"
	FetchInvalidListID Code = "FETCH_INVALID_LIST_ID"
	FetchCommandFailed Code = "FETCH_COMMAND_FAILED"
	FetchParseError    Code = "FETCH_JSON_PARSE_ERROR"

	// LLM API errors
	LLMAuthFailed      Code = "LLM_API_AUTH"
	LLMRateLimited     Code = "LLM_RATE_LIMITED"
	LLMTimeout         Code = "LLM_TIMEOUT"
	LLMEmptyResponse   Code = "LLM_EMPTY_RESPONSE"
	LLMInvalidResponse Code = "LLM_INVALID_RESPONSE"
	LLMQuotaExceeded   Code = "LLM_QUOTA_EXCEEDED"
	LLMNetworkError    Code = "LLM_NETWORK_ERROR"

	// Image processing errors
	ImageDownloadFailed Code = "IMAGE_DOWNLOAD_FAILED"
	ImageEncodingFailed Code = "IMAGE_ENCODING_FAILED"
	ImageTooLarge       Code = "IMAGE_TOO_LARGE"
	ImageInvalidFormat  Code = "IMAGE_INVALID_FORMAT"

	// Delivery errors
	DeliveryAuthFailed       Code = "DELIVERY_AUTH_FAILED"
	DeliverySendFailed       Code = "DELIVERY_SEND_FAILED"
	DeliveryRateLimited      Code = "DELIVERY_RATE_LIMITED"
	DeliveryMessageTooLong   Code = "DELIVERY_MESSAGE_TOO_LONG"
	DeliveryRecipientInvalid Code = "DELIVERY_RECIPIENT_INVALID"
	DeliveryNetworkError     Code = "DELIVERY_NETWORK_ERROR"

	// WhatsApp gateway specific
	WhatsAppGatewayUnavailable Code = "WHATSAPP_GATEWAY_UNAVAILABLE"
	WhatsAppSessionExpired     Code = "WHATSAPP_SESSION_EXPIRED"
	WhatsAppRecipientNotFound  Code = "WHATSAPP_RECIPIENT_NOT_FOUND"

	// Telegram specific
	TelegramBotBlocked   Code = "TELEGRAM_BOT_BLOCKED"
	TelegramChatNotFound Code = "TELEGRAM_CHAT_NOT_FOUND"

	// Status store errors
	StatusFileLocked  Code = "STATUS_FILE_LOCKED"
	StatusFileCorrupt Code = "STATUS_FILE_CORRUPT"
	PermissionDenied  Code = "WRITE_PERMISSION_DENIED"
)

// Error is an error with a structured code attached.
type Error struct {
	Code    Code
	Message string
	Err     error // wrapped cause, may be nil
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the structured code from an error chain.
// Returns empty Code and false if no *Error is present.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
