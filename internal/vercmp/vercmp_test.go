package vercmp

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"1.5.0", "1.5.0", 0},
		{"1.5.1", "1.5.0", 1},
		{"1.5.1", "1.5", 1},
		{"1.5.0-1", "1.5.0-2", -1},
		{"1.5.0-1", "1.5.1-1", -1},
		{"1.5.0-2", "1.5.1-1", -1},
		{"1.5-1", "1.5", 0}, // release only compared when both have one
		{"1.5", "1.5-3", 0},
		{"1:1.0", "1.0", 1}, // epoch wins
		{"1.0", "0:1.0", 0},
		{"1:1.0", "2:0.1", -1},
		{"1.10", "1.9", 1},
		{"1.001", "1.1", 0}, // leading zeros ignored
		{"1.0a", "1.0b", -1}, // pre-release ordering
		{"1.0b", "1.0beta", -1},
		{"1.0beta", "1.0p", -1},
		{"1.0p", "1.0pre", -1},
		{"1.0pre", "1.0rc", -1},
		{"1.0rc", "1.0", -1},
		{"1.0", "1.0.a", -1},
		{"1.0.a", "1.0.1", -1},
		{"1.5.b", "1.5", 1},
		{"r1234.abcdef-1", "r1200.fffff-1", 1},
		{"0.9.r12.g1a2b3c-1", "0.9.r9.gffffff-1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	if !Newer("2.0-1", "1.9-4") {
		t.Error("Newer(2.0-1, 1.9-4) = false, want true")
	}
	if Newer("1.0-1", "1.0-1") {
		t.Error("Newer on equal versions = true, want false")
	}
}

func TestParseEVR(t *testing.T) {
	tests := []struct {
		in              string
		epoch, ver, rel string
	}{
		{"1.0", "0", "1.0", ""},
		{"1.0-2", "0", "1.0", "2"},
		{"3:1.0-2", "3", "1.0", "2"},
		{":1.0", "0", "1.0", ""},
		{"1.0-rc1-2", "0", "1.0-rc1", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, v, r := parseEVR(tt.in)
			if e != tt.epoch || v != tt.ver || r != tt.rel {
				t.Errorf("parseEVR(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.in, e, v, r, tt.epoch, tt.ver, tt.rel)
			}
		})
	}
}
