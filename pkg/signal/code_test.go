package signal

import "testing"

func TestGeneratePairCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GeneratePairCode()
		if !ValidatePairCode(code) {
			t.Fatalf("GeneratePairCode() = %q, not a valid 4-digit code", code)
		}
	}
}

func TestValidatePairCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"4821", true},
		{"0000", true},
		{"9999", true},
		{"", false},
		{"123", false},
		{"12345", false},
		{"12a4", false},
		{"12 4", false},
		{"-123", false},
		{"١٢٣٤", false}, // non-ASCII digits
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ValidatePairCode(tt.code); got != tt.want {
				t.Errorf("ValidatePairCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestNormalizePairCode(t *testing.T) {
	if got := NormalizePairCode("  4821\n"); got != "4821" {
		t.Errorf("NormalizePairCode = %q, want %q", got, "4821")
	}
}

func TestTopicForCode(t *testing.T) {
	if got := TopicForCode("4821"); got != "pair-4821" {
		t.Errorf("TopicForCode = %q, want %q", got, "pair-4821")
	}
}
