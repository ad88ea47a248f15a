package handler

import (
	"encoding/json"
	"time"

	"ftledger/internal/token/models"
	id "ftledger/pkg/domain"
)

// rawJSON passes an already-encoded reply through WriteJSON untouched.
type rawJSON json.RawMessage

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return r, nil
}

// TokenResponse is the response body for GET /v1/token.
type TokenResponse struct {
	Name          string               `json:"name"`
	Symbol        string               `json:"symbol"`
	Decimals      uint8                `json:"decimals"`
	Description   string               `json:"description"`
	ExternalLinks models.ExternalLinks `json:"external_links"`
	CurrentSupply id.Amount            `json:"current_supply"`
	TotalSupply   id.Amount            `json:"total_supply"`
	Config        models.Config        `json:"config"`
}

type BalanceResponse struct {
	Account id.ActorID `json:"account"`
	Balance id.Amount  `json:"balance"`
}

type AllowanceResponse struct {
	Owner     id.ActorID `json:"owner"`
	Spender   id.ActorID `json:"spender"`
	Allowance id.Amount  `json:"allowance"`
}

type AdminsResponse struct {
	Admins []id.ActorID `json:"admins"`
}

type TxIDsResponse struct {
	Account id.ActorID `json:"account"`
	TxIDs   []id.TxID  `json:"tx_ids"`
}

// TxValidityResponse reports when a recorded tx id stops blocking replays.
type TxValidityResponse struct {
	Account    id.ActorID `json:"account"`
	TxID       id.TxID    `json:"tx_id"`
	ValidUntil time.Time  `json:"valid_until"`
}
