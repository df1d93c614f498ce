package control

import "testing"

func TestIsMachinePickupVariants(t *testing.T) {
	cases := map[string]bool{
		"human":              false,
		"":                   false,
		"machine":            true,
		"ANSWERING_MACHINE":  true,
		"fax":                true,
		"voicemail":          true,
	}
	for in, want := range cases {
		if got := isMachinePickup(in); got != want {
			t.Errorf("isMachinePickup(%q) = %v, want %v", in, got, want)
		}
	}
}
