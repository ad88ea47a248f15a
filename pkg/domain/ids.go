package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	dErrors "ftledger/pkg/domain-errors"
)

// ActorIDSize is the byte length of an account identifier.
const ActorIDSize = 32

// ActorID is the opaque fixed-size address of a ledger participant.
// The zero value is a valid identifier but is never accepted as a sender,
// recipient or administrator.
type ActorID [ActorIDSize]byte

// ZeroActor is the all-zero identifier.
var ZeroActor ActorID

// ParseActorID decodes a 64-character hex string, with or without a 0x prefix.
func ParseActorID(s string) (ActorID, error) {
	var a ActorID
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if raw == "" {
		return a, dErrors.New(dErrors.CodeBadRequest, "actor id cannot be empty")
	}
	if len(raw) != hex.EncodedLen(ActorIDSize) {
		return a, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("actor id must be %d hex characters", hex.EncodedLen(ActorIDSize)))
	}
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return ActorID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "actor id is not valid hex")
	}
	return a, nil
}

// MustParseActorID is ParseActorID for constants and tests.
func MustParseActorID(s string) ActorID {
	a, err := ParseActorID(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the zero identifier.
func (a ActorID) IsZero() bool {
	return a == ZeroActor
}

// String returns the 0x-prefixed lowercase hex form.
func (a ActorID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a ActorID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ActorID) UnmarshalText(text []byte) error {
	parsed, err := ParseActorID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a *ActorID) UnmarshalYAML(node *yaml.Node) error {
	return a.UnmarshalText([]byte(node.Value))
}

// TxID is a client-chosen transaction identifier, unique per account only.
type TxID uint64

func (t TxID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// ParseTxID parses a decimal transaction id.
func ParseTxID(s string) (TxID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "tx id must be an unsigned 64-bit integer")
	}
	return TxID(v), nil
}
