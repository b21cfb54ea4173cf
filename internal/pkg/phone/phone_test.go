package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		region string
		want   string
		ok     bool
	}{
		{"national with region", "(202) 456-1111", "US", "+12024561111", true},
		{"international without region", "+44 20 7031 3000", "", "+442070313000", true},
		{"national without region", "2024561111", "", "2024561111", false},
		{"garbage kept", "  call me  ", "US", "call me", false},
		{"empty", "   ", "US", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, tt.region)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "GB", Region("+44 20 7031 3000"))
	assert.Equal(t, "", Region("12345"))
}
