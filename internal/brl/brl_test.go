package brl

import (
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{
			name:  "thousands and decimal comma",
			input: "10.000,50",
			want:  10000.50,
		},
		{
			name:  "decimal comma only",
			input: "1.234,56",
			want:  1234.56,
		},
		{
			name:  "integral string without comma",
			input: "1500",
			want:  1500,
		},
		{
			name:  "negative value",
			input: "-250,75",
			want:  -250.75,
		},
		{
			name:  "currency prefix",
			input: "R$ 10.000,50",
			want:  10000.50,
		},
		{
			name:  "surrounding whitespace",
			input: "  99,90  ",
			want:  99.90,
		},
		{
			name:    "non-numeric",
			input:   "SALDO ANTERIOR",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "day first slash",
			input: "03/04/2025",
			want:  time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "day first dash",
			input: "15-08-2024",
			want:  time.Date(2024, time.August, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso fallback",
			input: "2025-04-03",
			want:  time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "time suffix dropped",
			input: "03/04/2025 00:00:00",
			want:  time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "not-a-date",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) returned error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
