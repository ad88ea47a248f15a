package models

import (
	"time"

	id "ftledger/pkg/domain"
)

// Query is a read-only request against the ledger state.
type Query interface {
	isQuery()
}

type NameQuery struct{}
type SymbolQuery struct{}
type DecimalsQuery struct{}

// CurrentSupplyQuery asks for the issued supply.
type CurrentSupplyQuery struct{}

// TotalSupplyQuery asks for the maximum supply fixed at initialization.
type TotalSupplyQuery struct{}

type DescriptionQuery struct{}
type ExternalLinksQuery struct{}
type ConfigQuery struct{}
type AdminsQuery struct{}

type BalanceOfQuery struct {
	Account id.ActorID
}

type AllowanceOfAccountQuery struct {
	Account         id.ActorID
	ApprovedAccount id.ActorID
}

type TxValidityTimeQuery struct {
	Account id.ActorID
	TxID    id.TxID
}

type TxIDsForAccountQuery struct {
	Account id.ActorID
}

func (NameQuery) isQuery()               {}
func (SymbolQuery) isQuery()             {}
func (DecimalsQuery) isQuery()           {}
func (CurrentSupplyQuery) isQuery()      {}
func (TotalSupplyQuery) isQuery()        {}
func (DescriptionQuery) isQuery()        {}
func (ExternalLinksQuery) isQuery()      {}
func (ConfigQuery) isQuery()             {}
func (AdminsQuery) isQuery()             {}
func (BalanceOfQuery) isQuery()          {}
func (AllowanceOfAccountQuery) isQuery() {}
func (TxValidityTimeQuery) isQuery()     {}
func (TxIDsForAccountQuery) isQuery()    {}

// QueryReply answers a Query. Each query type has exactly one reply type.
type QueryReply interface {
	isQueryReply()
}

type NameReply struct {
	Name string `json:"name"`
}

type SymbolReply struct {
	Symbol string `json:"symbol"`
}

type DecimalsReply struct {
	Decimals uint8 `json:"decimals"`
}

type CurrentSupplyReply struct {
	Amount id.Amount `json:"current_supply"`
}

type TotalSupplyReply struct {
	Amount id.Amount `json:"total_supply"`
}

type DescriptionReply struct {
	Description string `json:"description"`
}

type ExternalLinksReply struct {
	Links ExternalLinks `json:"external_links"`
}

type ConfigReply struct {
	Config Config `json:"config"`
}

type AdminsReply struct {
	Admins []id.ActorID `json:"admins"`
}

type BalanceOfReply struct {
	Amount id.Amount `json:"balance"`
}

type AllowanceReply struct {
	Amount id.Amount `json:"allowance"`
}

// TxValidityTimeReply holds the expiry of a live record. ValidUntil is nil
// when no live record exists.
type TxValidityTimeReply struct {
	ValidUntil *time.Time `json:"valid_until"`
}

type TxIDsForAccountReply struct {
	TxIDs []id.TxID `json:"tx_ids"`
}

func (NameReply) isQueryReply()            {}
func (SymbolReply) isQueryReply()          {}
func (DecimalsReply) isQueryReply()        {}
func (CurrentSupplyReply) isQueryReply()   {}
func (TotalSupplyReply) isQueryReply()     {}
func (DescriptionReply) isQueryReply()     {}
func (ExternalLinksReply) isQueryReply()   {}
func (ConfigReply) isQueryReply()          {}
func (AdminsReply) isQueryReply()          {}
func (BalanceOfReply) isQueryReply()       {}
func (AllowanceReply) isQueryReply()       {}
func (TxValidityTimeReply) isQueryReply()  {}
func (TxIDsForAccountReply) isQueryReply() {}
