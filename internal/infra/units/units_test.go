package units

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0.01", 1_000_000, false},
		{"1", 100_000_000, false},
		{"0.00000001", 1, false},
		{"10.5", 1_050_000_000, false},
		{"-0.5", -50_000_000, false},
		{"0.000000001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in, DefaultDecimals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		minor    int64
		decimals int32
		want     string
	}{
		{1_000_000, 8, "0.01000000"},
		{0, 8, "0.00000000"},
		{15, 0, "15"},
		{1234, 2, "12.34"},
	}

	for _, tt := range tests {
		if got := Format(tt.minor, tt.decimals); got != tt.want {
			t.Errorf("Format(%d, %d) = %q, want %q", tt.minor, tt.decimals, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, minor := range []int64{1, 99, 1_000_000, 123_456_789} {
		got, err := Parse(Format(minor, DefaultDecimals), DefaultDecimals)
		if err != nil || got != minor {
			t.Errorf("round trip %d = %d, %v", minor, got, err)
		}
	}
}
