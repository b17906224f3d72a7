package validation

import (
	"testing"
)

func TestValidateNetworkID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"mainnet", "SN_MAIN", false},
		{"testnet", "SN_SEPOLIA", false},
		{"short", "TE", false},
		{"single char", "T", true},
		{"lowercase", "sn_main", true},
		{"starts with digit", "1NET", true},
		{"trailing underscore", "SN_", true},
		{"double underscore", "SN__MAIN", true},
		{"too long", "SN_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNetworkID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNetworkID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"full length", "0x053c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8", false},
		{"short", "0xABC", false},
		{"upper prefix", "0X1", false},
		{"missing prefix", "053c91253bc9682c", true},
		{"prefix only", "0x", true},
		{"non hex", "0xZZZ", true},
		{"too long", "0x" + "1" + "0000000000000000000000000000000000000000000000000000000000000000", true},
		{"above field prime", "0x0800000000000011000000000000000000000000000000000000000000000001", true},
		{"just below field prime", "0x0800000000000011000000000000000000000000000000000000000000000000", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBPS(t *testing.T) {
	tests := []struct {
		value   int64
		wantErr bool
	}{
		{0, false},
		{500, false},
		{50000, false},
		{MaxBPS, false},
		{MaxBPS + 1, true},
		{-1, true},
	}

	for _, tt := range tests {
		err := ValidateBPS(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBPS(%d) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://starkscan.co", false},
		{"http://localhost:5050", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"not a url", true},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid semver", "0.40.0", false},
		{"valid with v prefix", "v0.40.0", false},
		{"valid prerelease", "0.40.0-rc.1", false},
		{"invalid no patch", "0.40", true},
		{"invalid characters", "0.40.0-beta!", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"0.34.0", "0.34.0", 0},
		{"0.40.0", "0.34.0", 1},
		{"v0.9.1", "0.34.0", -1},
		{"1.0.0", "1.0.0-rc.1", 1},
	}

	for _, tt := range tests {
		if got := CompareVersions(tt.v1, tt.v2); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0x00ABC", "0xabc"},
		{"0xabc", "0xabc"},
		{"0X0", "0x0"},
		{"0x000", "0x0"},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.input); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
