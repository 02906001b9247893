package chat

import (
	"errors"
	"fmt"
)

// Domain-level errors for chat behaviors
var (
	ErrValidation          = errors.New("chat: validation failed")
	ErrEmptyMessage        = fmt.Errorf("%w: empty message", ErrValidation)
	ErrNoReceiver          = fmt.Errorf("%w: no receiver resolvable", ErrValidation)
	ErrInvalidConversation = fmt.Errorf("%w: conversation needs two distinct participants", ErrValidation)
	ErrNoOpenConversation  = fmt.Errorf("%w: no conversation is open", ErrValidation)

	ErrNotParticipant = errors.New("chat: sender is not a participant in the conversation")
	ErrNotFound       = errors.New("chat: not found")
	ErrSendInFlight   = errors.New("chat: a send is already pending for this conversation")
	ErrNotRetriable   = errors.New("chat: message is not in failed state")
	ErrUnauthorized   = errors.New("chat: unauthorized")

	ErrTransientDelivery = errors.New("chat: transient delivery failure")
)

// TransientDeliveryError reports a failed persistence or network call on the
// send path. It is user-retriable.
type TransientDeliveryError struct {
	Op  string
	Err error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("chat: %s: %v", e.Op, e.Err)
}

func (e *TransientDeliveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransientDelivery) hold for every TransientDeliveryError.
func (e *TransientDeliveryError) Is(target error) bool {
	return target == ErrTransientDelivery
}
