package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")

	ErrChatNotFound     = fmt.Errorf("chat not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrNotParticipant   = fmt.Errorf("user is not a participant of this chat")
	ErrNotMessageAuthor = fmt.Errorf("user is not the author of this message")
	ErrMessageDeleted   = fmt.Errorf("message has been deleted")
	ErrForbidden        = fmt.Errorf("operation not allowed for this role")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrSinkBackpressure = fmt.Errorf("connection sink is full")
	ErrUnknownEvent     = fmt.Errorf("unknown event")
	ErrAttachmentType   = fmt.Errorf("declared content type does not match detected type")
)
