package address

import "testing"

func TestRoundTripCallsigns(t *testing.T) {
	cases := []string{"A", "VK7XT", "M17RT-PKT", "N0CALL", "W1AW", "123456789", "A.B/C-D"}
	for _, cs := range cases {
		t.Run(cs, func(t *testing.T) {
			enc := EncodeCallsign(cs)
			if enc.Kind() != Callsign {
				t.Fatalf("EncodeCallsign(%q).Kind() = %v, want Callsign", cs, enc.Kind())
			}
			dec := Decode(enc.Value())
			if dec.Kind() != Callsign {
				t.Fatalf("Decode(%x).Kind() = %v, want Callsign", enc.Value(), dec.Kind())
			}
			if dec.Callsign() != enc.Callsign() {
				t.Errorf("round trip %q -> %q", enc.Callsign(), dec.Callsign())
			}
		})
	}
}

func TestBroadcastRoundTrip(t *testing.T) {
	dec := Decode(BroadcastAddress.Value())
	if dec.Kind() != Broadcast {
		t.Fatalf("Decode(broadcast value).Kind() = %v, want Broadcast", dec.Kind())
	}
}

func TestInvalidZero(t *testing.T) {
	if Decode(0).Kind() != Invalid {
		t.Errorf("Decode(0).Kind() != Invalid")
	}
}

func TestReservedRange(t *testing.T) {
	v := uint64(0xEE6B28000000)
	if got := Decode(v).Kind(); got != Reserved {
		t.Errorf("Decode(%x).Kind() = %v, want Reserved", v, got)
	}
	maxCallsign := Decode(maxCallsignValue)
	if maxCallsign.Kind() != Callsign {
		t.Errorf("Decode(maxCallsignValue).Kind() = %v, want Callsign", maxCallsign.Kind())
	}
}
