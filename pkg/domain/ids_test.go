package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	dErrors "ftledger/pkg/domain-errors"
)

const aliceHex = "0x1111111111111111111111111111111111111111111111111111111111111111"

// TestParseActorID_Invariants validates the parsing invariant:
// "account ids are exactly 32 bytes of hex, optionally 0x-prefixed"
//
// Justification: This is a pure function guarding the trust boundary
// where transports decode caller-supplied account ids.
func TestParseActorID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseActorID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects short input", func(t *testing.T) {
		_, err := ParseActorID("0xabcd")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParseActorID(strings.Repeat("zz", ActorIDSize))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts prefixed and bare forms", func(t *testing.T) {
		prefixed, err := ParseActorID(aliceHex)
		require.NoError(t, err)
		bare, err := ParseActorID(strings.TrimPrefix(aliceHex, "0x"))
		require.NoError(t, err)
		assert.Equal(t, prefixed, bare)
		assert.Equal(t, aliceHex, prefixed.String())
	})

	t.Run("zero id parses but reports zero", func(t *testing.T) {
		id, err := ParseActorID(strings.Repeat("0", 64))
		require.NoError(t, err)
		assert.True(t, id.IsZero())
	})
}

func TestActorIDEncoding(t *testing.T) {
	alice := MustParseActorID(aliceHex)

	t.Run("json uses the hex string", func(t *testing.T) {
		raw, err := json.Marshal(map[string]ActorID{"who": alice})
		require.NoError(t, err)
		assert.JSONEq(t, `{"who":"`+aliceHex+`"}`, string(raw))

		var back map[string]ActorID
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, alice, back["who"])
	})

	t.Run("yaml decodes the hex string", func(t *testing.T) {
		var doc struct {
			Admin ActorID `yaml:"admin"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("admin: "+aliceHex+"\n"), &doc))
		assert.Equal(t, alice, doc.Admin)
	})
}

func TestParseTxID(t *testing.T) {
	id, err := ParseTxID("42")
	require.NoError(t, err)
	assert.Equal(t, TxID(42), id)

	_, err = ParseTxID("-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

// =============================================================================
// Amount
// =============================================================================

func TestAmountArithmetic(t *testing.T) {
	t.Run("add within range", func(t *testing.T) {
		sum, ok := NewAmount(7).Add(NewAmount(5))
		require.True(t, ok)
		assert.Equal(t, "12", sum.String())
	})

	t.Run("add past 2^128-1 overflows", func(t *testing.T) {
		_, ok := MaxAmount().Add(NewAmount(1))
		assert.False(t, ok)
	})

	t.Run("sub below zero underflows", func(t *testing.T) {
		_, ok := NewAmount(3).Sub(NewAmount(4))
		assert.False(t, ok)
	})

	t.Run("mul detects 128-bit overflow", func(t *testing.T) {
		half := MustParseAmount("170141183460469231731687303715884105728") // 2^127
		_, ok := half.MulUint64(2)
		assert.False(t, ok)

		p, ok := NewAmount(10).MulUint64(3)
		require.True(t, ok)
		assert.Equal(t, 0, p.Cmp(NewAmount(30)))
	})

	t.Run("max is 2^128-1", func(t *testing.T) {
		assert.Equal(t, "340282366920938463463374607431768211455", MaxAmount().String())
	})
}

func TestParseAmount(t *testing.T) {
	_, err := ParseAmount("340282366920938463463374607431768211456")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = ParseAmount("-5")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	a, err := ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func TestAmountJSON(t *testing.T) {
	raw, err := json.Marshal(NewAmount(1000))
	require.NoError(t, err)
	assert.Equal(t, `"1000"`, string(raw))

	var quoted, bare Amount
	require.NoError(t, json.Unmarshal([]byte(`"1000"`), &quoted))
	require.NoError(t, json.Unmarshal([]byte(`1000`), &bare))
	assert.Equal(t, quoted, bare)
}
