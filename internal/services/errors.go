// Package services defines the business logic for conversations, outbound
// and inbound SMS, quick actions, and automation rules. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current tenant.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidPhone is returned when a phone number normalizes to nothing,
	// leaving no key to resolve a conversation with.
	ErrInvalidPhone = errors.New("phone number is empty after normalization")

	// ErrEmptyBody is returned when a request to send a message contains an
	// empty body.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrBodyTooLong is returned when a message body exceeds the maximum
	// configured length limit.
	ErrBodyTooLong = errors.New("message body too long")

	// ErrUnknownQuickAction is returned when a quick action kind is outside
	// the fixed enumeration. It is rejected before any persistence.
	ErrUnknownQuickAction = errors.New("unknown quick action")

	// ErrJobNotFound indicates that the job referenced by a quick action does
	// not exist or is not owned by the current tenant.
	ErrJobNotFound = errors.New("job not found")

	// ErrClientWithoutPhone is returned when the target client record carries
	// no phone number to text.
	ErrClientWithoutPhone = errors.New("client has no phone number")

	// ErrRuleNotFound indicates that the requested automation rule does not
	// exist or is not owned by the current tenant.
	ErrRuleNotFound = errors.New("automation rule not found")

	// ErrInvalidTrigger is returned when an automation rule names an unknown
	// trigger type. It is rejected before any persistence.
	ErrInvalidTrigger = errors.New("unknown automation trigger type")
)
