package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes", "yes", false, true},
		{"on", "on", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"no", "no", true, false},
		{"off", "off", true, false},
		{"mixed case", "TRUE", false, true},
		{"whitespace", " true ", false, true},
		{"invalid uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("QUITPREP_TEST_BOOL", tt.value)
			}
			if got := ParseBoolEnv("QUITPREP_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"unset uses default", "", 465, 465},
		{"valid", "587", 465, 587},
		{"whitespace", " 25 ", 465, 25},
		{"negative", "-1", 465, -1},
		{"invalid uses default", "not-a-port", 465, 465},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("QUITPREP_TEST_INT", tt.value)
			}
			if got := ParseIntEnv("QUITPREP_TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}
