package models

import (
	"encoding/json"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

// ActionEnvelope is the record value on the actions topic. Caller is taken
// as written: whoever may produce to the topic may act as any account, so
// produce rights must be limited by broker ACLs to trusted gateways.
type ActionEnvelope struct {
	Caller id.ActorID      `json:"caller"`
	Action json.RawMessage `json:"action"`
}

// Decode unwraps the envelope into the caller and a typed action.
func (e ActionEnvelope) Decode() (id.ActorID, Action, error) {
	if len(e.Action) == 0 {
		return id.ActorID{}, nil, dErrors.New(dErrors.CodeBadRequest, "envelope has no action")
	}
	action, err := DecodeAction(e.Action)
	if err != nil {
		return id.ActorID{}, nil, err
	}
	return e.Caller, action, nil
}

// ErrorBody is the error half of a ReplyEnvelope.
type ErrorBody struct {
	Code    dErrors.Code `json:"code"`
	Message string       `json:"message"`
}

// ReplyEnvelope is the record value on the replies topic.
type ReplyEnvelope struct {
	CorrelationID string          `json:"correlation_id"`
	OK            bool            `json:"ok"`
	Reply         json.RawMessage `json:"reply,omitempty"`
	Error         *ErrorBody      `json:"error,omitempty"`
}

// NewReplyEnvelope builds the envelope for a dispatch outcome.
func NewReplyEnvelope(correlationID string, reply Reply, err error) (ReplyEnvelope, error) {
	env := ReplyEnvelope{CorrelationID: correlationID}
	if err != nil {
		env.Error = &ErrorBody{Code: dErrors.CodeOf(err), Message: err.Error()}
		return env, nil
	}
	raw, encErr := EncodeReply(reply)
	if encErr != nil {
		return ReplyEnvelope{}, encErr
	}
	env.OK = true
	env.Reply = raw
	return env, nil
}
