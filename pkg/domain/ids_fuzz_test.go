//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseActorID tests that parsing never panics on arbitrary input
// and that every accepted id round-trips through its string form.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseActorID(f *testing.F) {
	f.Add("")
	f.Add(aliceHex)
	f.Add("0x0000000000000000000000000000000000000000000000000000000000000000")
	f.Add("not-an-actor")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add(aliceHex + "\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseActorID(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseActorID(id.String())
		if err != nil {
			t.Errorf("valid id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
	})
}

// FuzzParseAmount checks that accepted amounts stay within 128 bits and
// round-trip through their decimal form.
func FuzzParseAmount(f *testing.F) {
	f.Add("0")
	f.Add("340282366920938463463374607431768211455")
	f.Add("340282366920938463463374607431768211456")
	f.Add("-1")
	f.Add("1e9")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}
		if a.Gt(MaxAmount()) {
			t.Errorf("accepted amount above 2^128-1: %s", input)
		}
		back, err := ParseAmount(a.String())
		if err != nil || back != a {
			t.Errorf("round-trip failed for %s", input)
		}
	})
}
