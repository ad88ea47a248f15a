package models

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

const (
	// MaxDecimals is the largest accepted display precision.
	MaxDecimals = 100
	// MaxDescriptionLength is measured in characters, not bytes.
	MaxDescriptionLength = 500
)

// ExternalLinks are informational URLs published with the token.
type ExternalLinks struct {
	Image      string  `json:"image" yaml:"image"`
	Website    *string `json:"website,omitempty" yaml:"website,omitempty"`
	Telegram   *string `json:"telegram,omitempty" yaml:"telegram,omitempty"`
	Twitter    *string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	Discord    *string `json:"discord,omitempty" yaml:"discord,omitempty"`
	Tokenomics *string `json:"tokenomics,omitempty" yaml:"tokenomics,omitempty"`
}

// Config holds the runtime policy fixed at initialization.
type Config struct {
	// TxStoragePeriod is how long a submitted tx id blocks replays.
	TxStoragePeriod time.Duration `json:"tx_storage_period" yaml:"tx_storage_period"`
	// TxPayment is the advertised per-transaction fee. The ledger does not
	// charge it.
	TxPayment id.Amount `json:"tx_payment" yaml:"tx_payment"`
}

// MarshalJSON renders the storage period as a Go duration string.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TxStoragePeriod string    `json:"tx_storage_period"`
		TxPayment       id.Amount `json:"tx_payment"`
	}{c.TxStoragePeriod.String(), c.TxPayment})
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var raw struct {
		TxStoragePeriod string    `json:"tx_storage_period"`
		TxPayment       id.Amount `json:"tx_payment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := time.ParseDuration(raw.TxStoragePeriod)
	if err != nil {
		return fmt.Errorf("tx_storage_period: %w", err)
	}
	c.TxStoragePeriod = d
	c.TxPayment = raw.TxPayment
	return nil
}

// Metadata describes the token. It never changes after initialization.
type Metadata struct {
	Name          string        `json:"name"`
	Symbol        string        `json:"symbol"`
	Decimals      uint8         `json:"decimals"`
	Description   string        `json:"description"`
	ExternalLinks ExternalLinks `json:"external_links"`
}

// InitConfig is the initialization payload.
type InitConfig struct {
	Name            string        `yaml:"name"`
	Symbol          string        `yaml:"symbol"`
	Decimals        uint8         `yaml:"decimals"`
	Description     string        `yaml:"description"`
	ExternalLinks   ExternalLinks `yaml:"external_links"`
	InitialSupply   id.Amount     `yaml:"initial_supply"`
	TotalSupply     id.Amount     `yaml:"total_supply"`
	Admin           id.ActorID    `yaml:"admin"`
	InitialCapacity *uint32       `yaml:"initial_capacity"`
	Config          Config        `yaml:"config"`
}

// Validate checks the payload in the order the ledger reports failures.
func (c InitConfig) Validate() error {
	if c.Decimals > MaxDecimals {
		return dErrors.New(dErrors.CodeDecimals, fmt.Sprintf("decimals %d exceeds %d", c.Decimals, MaxDecimals))
	}
	n := utf8.RuneCountInString(c.Description)
	if n == 0 {
		return dErrors.New(dErrors.CodeDescription, "description is required")
	}
	if n > MaxDescriptionLength {
		return dErrors.New(dErrors.CodeDescription, fmt.Sprintf("description is %d characters, limit %d", n, MaxDescriptionLength))
	}
	if c.Admin.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "admin cannot be the zero address")
	}
	if c.InitialSupply.Gt(c.TotalSupply) {
		return dErrors.New(dErrors.CodeMaxSupplyReached, "initial supply exceeds total supply")
	}
	return nil
}

// Metadata extracts the token description part of the payload.
func (c InitConfig) Metadata() Metadata {
	return Metadata{
		Name:          c.Name,
		Symbol:        c.Symbol,
		Decimals:      c.Decimals,
		Description:   c.Description,
		ExternalLinks: c.ExternalLinks,
	}
}

// Capacity returns the journal capacity hint, zero when unset.
func (c InitConfig) Capacity() int {
	if c.InitialCapacity == nil {
		return 0
	}
	return int(*c.InitialCapacity)
}
