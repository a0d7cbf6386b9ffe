package utils

import "testing"

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{" msft ", "MSFT"},
		{"BRK.b", "BRK.B"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTicker(tt.in); got != tt.want {
			t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		name    string
		ticker  string
		wantErr bool
	}{
		{"plain", "AAPL", false},
		{"class share", "BRK.B", false},
		{"dash listing", "BF-B", false},
		{"digits", "3M1", false},
		{"empty", "", true},
		{"too long", "ABCDEFGHIJK", true},
		{"lowercase rejected", "aapl", true},
		{"whitespace", "AA PL", true},
		{"injection", "AAPL;DROP", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTicker(tt.ticker)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTicker(%q) error = %v, wantErr %v", tt.ticker, err, tt.wantErr)
			}
		})
	}
}
