package core

// Error codes for domain errors.
const (
	ErrCodeInvalidCredential    = "invalid_credential"
	ErrCodeTooManyCollisions    = "too_many_collisions"
	ErrCodeDuplicateName        = "duplicate_name"
	ErrCodeInvalidGroupName     = "invalid_group_name"
	ErrCodeGroupNotFound        = "group_not_found"
	ErrCodeForbidden            = "forbidden"
	ErrCodeNotAMember           = "not_a_member"
	ErrCodeRecipientOffline     = "recipient_offline"
	ErrCodeMessageNotFound      = "message_not_found"
	ErrCodeNotSender            = "not_sender"
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeAlreadyAuthenticated = "already_authenticated"
	ErrCodeInternal             = "internal"
)

var (
	// Identity registry.
	ErrInvalidCredential = coreError(ErrCodeInvalidCredential, "invalid credential")
	ErrTooManyCollisions = coreError(ErrCodeTooManyCollisions, "could not assign a unique tag, try again")

	// Group store.
	ErrDuplicateName    = coreError(ErrCodeDuplicateName, "a group with this name already exists")
	ErrInvalidGroupName = coreError(ErrCodeInvalidGroupName, "group name is empty or contains reserved characters")
	ErrGroupNotFound    = coreError(ErrCodeGroupNotFound, "group does not exist")
	ErrForbidden        = coreError(ErrCodeForbidden, "this is a private group")

	// Router.
	ErrNotAMember       = coreError(ErrCodeNotAMember, "you are not a member of this private group")
	ErrRecipientOffline = coreError(ErrCodeRecipientOffline, "recipient is offline, message stored")
	ErrNotSender        = coreError(ErrCodeNotSender, "only the original sender can edit a message")

	// History store.
	ErrMessageNotFound = coreError(ErrCodeMessageNotFound, "message not found")

	// Session.
	ErrBadRequest           = coreError(ErrCodeBadRequest, "bad request")
	ErrUnauthorized         = coreError(ErrCodeUnauthorized, "join first")
	ErrAlreadyAuthenticated = coreError(ErrCodeAlreadyAuthenticated, "connection already joined")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Is matches any CoreError carrying the same code, so errors built with
// badRequest compare equal to ErrBadRequest.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	return ok && t.Code == e.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func badRequest(msg string) *CoreError {
	return coreError(ErrCodeBadRequest, msg)
}
