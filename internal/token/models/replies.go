package models

import (
	"encoding/json"
	"fmt"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

// ReplyKind is the wire tag of a reply variant.
type ReplyKind string

const (
	ReplyInitialized        ReplyKind = "initialized"
	ReplyTransferredToUsers ReplyKind = "transferred_to_users"
	ReplyTransferred        ReplyKind = "transferred"
	ReplyApproved           ReplyKind = "approved"
	ReplyAdminAdded         ReplyKind = "admin_added"
	ReplyAdminRemoved       ReplyKind = "admin_removed"
	ReplyBalance            ReplyKind = "balance"
)

// Reply is the success outcome of an action.
type Reply interface {
	Kind() ReplyKind
	isReply()
}

type Initialized struct{}

type TransferredToUsers struct {
	From    id.ActorID   `json:"from"`
	ToUsers []id.ActorID `json:"to_users"`
	Amount  id.Amount    `json:"amount"`
}

type Transferred struct {
	From   id.ActorID `json:"from"`
	To     id.ActorID `json:"to"`
	Amount id.Amount  `json:"amount"`
}

type Approved struct {
	From   id.ActorID `json:"from"`
	To     id.ActorID `json:"to"`
	Amount id.Amount  `json:"amount"`
}

type AdminAdded struct {
	AdminID id.ActorID `json:"admin_id"`
}

type AdminRemoved struct {
	AdminID id.ActorID `json:"admin_id"`
}

// Balance carries a single amount: an account balance for BalanceOf and
// Mint, the remaining issued supply for Burn.
type Balance struct {
	Amount id.Amount `json:"amount"`
}

func (Initialized) Kind() ReplyKind        { return ReplyInitialized }
func (TransferredToUsers) Kind() ReplyKind { return ReplyTransferredToUsers }
func (Transferred) Kind() ReplyKind        { return ReplyTransferred }
func (Approved) Kind() ReplyKind           { return ReplyApproved }
func (AdminAdded) Kind() ReplyKind         { return ReplyAdminAdded }
func (AdminRemoved) Kind() ReplyKind       { return ReplyAdminRemoved }
func (Balance) Kind() ReplyKind            { return ReplyBalance }

func (Initialized) isReply()        {}
func (TransferredToUsers) isReply() {}
func (Transferred) isReply()        {}
func (Approved) isReply()           {}
func (AdminAdded) isReply()         {}
func (AdminRemoved) isReply()       {}
func (Balance) isReply()            {}

// EncodeReply renders a reply as a tagged object.
func EncodeReply(r Reply) ([]byte, error) {
	switch v := r.(type) {
	case Initialized:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
		}{v.Kind()})
	case TransferredToUsers:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			TransferredToUsers
		}{v.Kind(), v})
	case Transferred:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			Transferred
		}{v.Kind(), v})
	case Approved:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			Approved
		}{v.Kind(), v})
	case AdminAdded:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			AdminAdded
		}{v.Kind(), v})
	case AdminRemoved:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			AdminRemoved
		}{v.Kind(), v})
	case Balance:
		return json.Marshal(struct {
			Type ReplyKind `json:"type"`
			Balance
		}{v.Kind(), v})
	default:
		return nil, fmt.Errorf("unsupported reply %T", r)
	}
}

// DecodeReply is the inverse of EncodeReply, used by clients of the
// replies topic.
func DecodeReply(data []byte) (Reply, error) {
	var hdr struct {
		Type ReplyKind `json:"type"`
	}
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed reply")
	}

	var (
		reply Reply
		err   error
	)
	switch hdr.Type {
	case ReplyInitialized:
		reply = Initialized{}
	case ReplyTransferredToUsers:
		reply, err = decodeReplyInto[TransferredToUsers](data)
	case ReplyTransferred:
		reply, err = decodeReplyInto[Transferred](data)
	case ReplyApproved:
		reply, err = decodeReplyInto[Approved](data)
	case ReplyAdminAdded:
		reply, err = decodeReplyInto[AdminAdded](data)
	case ReplyAdminRemoved:
		reply, err = decodeReplyInto[AdminRemoved](data)
	case ReplyBalance:
		reply, err = decodeReplyInto[Balance](data)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown reply type %q", hdr.Type))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed reply")
	}
	return reply, nil
}

func decodeReplyInto[T Reply](data []byte) (Reply, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
