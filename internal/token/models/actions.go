package models

import (
	"encoding/json"
	"fmt"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

// ActionKind is the wire tag of an action variant.
type ActionKind string

const (
	KindMint            ActionKind = "mint"
	KindBurn            ActionKind = "burn"
	KindTransfer        ActionKind = "transfer"
	KindApprove         ActionKind = "approve"
	KindTransferToUsers ActionKind = "transfer_to_users"
	KindBalanceOf       ActionKind = "balance_of"
	KindAddAdmin        ActionKind = "add_admin"
	KindDeleteAdmin     ActionKind = "delete_admin"
)

// Action is one ledger command. The set of variants is closed: only the
// types in this file implement it.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Mint creates Amount new tokens on To. Admin only.
type Mint struct {
	Amount id.Amount  `json:"amount"`
	To     id.ActorID `json:"to"`
}

// Burn destroys Amount tokens from the calling admin's balance.
type Burn struct {
	Amount id.Amount `json:"amount"`
}

// Transfer moves Amount from From to To. When the caller is not From it
// spends the caller's allowance on From.
type Transfer struct {
	TxID   *id.TxID   `json:"tx_id,omitempty"`
	From   id.ActorID `json:"from"`
	To     id.ActorID `json:"to"`
	Amount id.Amount  `json:"amount"`
}

// Approve sets the allowance of To on the caller's balance.
type Approve struct {
	TxID   *id.TxID   `json:"tx_id,omitempty"`
	To     id.ActorID `json:"to"`
	Amount id.Amount  `json:"amount"`
}

// TransferToUsers pays Amount to every recipient from the calling admin's
// balance.
type TransferToUsers struct {
	Amount  id.Amount    `json:"amount"`
	ToUsers []id.ActorID `json:"to_users"`
}

type BalanceOf struct {
	Account id.ActorID `json:"account"`
}

type AddAdmin struct {
	AdminID id.ActorID `json:"admin_id"`
}

type DeleteAdmin struct {
	AdminID id.ActorID `json:"admin_id"`
}

func (Mint) Kind() ActionKind            { return KindMint }
func (Burn) Kind() ActionKind            { return KindBurn }
func (Transfer) Kind() ActionKind        { return KindTransfer }
func (Approve) Kind() ActionKind         { return KindApprove }
func (TransferToUsers) Kind() ActionKind { return KindTransferToUsers }
func (BalanceOf) Kind() ActionKind       { return KindBalanceOf }
func (AddAdmin) Kind() ActionKind        { return KindAddAdmin }
func (DeleteAdmin) Kind() ActionKind     { return KindDeleteAdmin }

func (Mint) isAction()            {}
func (Burn) isAction()            {}
func (Transfer) isAction()        {}
func (Approve) isAction()         {}
func (TransferToUsers) isAction() {}
func (BalanceOf) isAction()       {}
func (AddAdmin) isAction()        {}
func (DeleteAdmin) isAction()     {}

// Mutates reports whether the action can change ledger state.
func Mutates(a Action) bool {
	_, readOnly := a.(BalanceOf)
	return !readOnly
}

type actionHeader struct {
	Type ActionKind `json:"type"`
}

// DecodeAction parses a tagged action object such as
// {"type":"mint","amount":"10","to":"0x..."}.
func DecodeAction(data []byte) (Action, error) {
	var hdr actionHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed action")
	}

	var (
		action Action
		err    error
	)
	switch hdr.Type {
	case KindMint:
		action, err = decodeInto[Mint](data)
	case KindBurn:
		action, err = decodeInto[Burn](data)
	case KindTransfer:
		action, err = decodeInto[Transfer](data)
	case KindApprove:
		action, err = decodeInto[Approve](data)
	case KindTransferToUsers:
		action, err = decodeInto[TransferToUsers](data)
	case KindBalanceOf:
		action, err = decodeInto[BalanceOf](data)
	case KindAddAdmin:
		action, err = decodeInto[AddAdmin](data)
	case KindDeleteAdmin:
		action, err = decodeInto[DeleteAdmin](data)
	case "":
		return nil, dErrors.New(dErrors.CodeBadRequest, "action type is required")
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown action type %q", hdr.Type))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("malformed %s action", hdr.Type))
	}
	return action, nil
}

func decodeInto[T Action](data []byte) (Action, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeAction renders an action in the tagged form DecodeAction reads.
func EncodeAction(a Action) ([]byte, error) {
	switch v := a.(type) {
	case Mint:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			Mint
		}{v.Kind(), v})
	case Burn:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			Burn
		}{v.Kind(), v})
	case Transfer:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			Transfer
		}{v.Kind(), v})
	case Approve:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			Approve
		}{v.Kind(), v})
	case TransferToUsers:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			TransferToUsers
		}{v.Kind(), v})
	case BalanceOf:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			BalanceOf
		}{v.Kind(), v})
	case AddAdmin:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			AddAdmin
		}{v.Kind(), v})
	case DeleteAdmin:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			DeleteAdmin
		}{v.Kind(), v})
	default:
		return nil, fmt.Errorf("unsupported action %T", a)
	}
}
