package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightings(t *testing.T) {
	w := DefaultWeightings()

	assert.InDelta(t, 100.0, w.Sum(), 0.001)
	require.NoError(t, w.Validate())
	assert.Equal(t, 25.0, w.MarketOpportunity)
	assert.Equal(t, 20.0, w.Traction)
}

func TestWeightingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weightings
		wantErr string
	}{
		{
			name: "sum inside tolerance",
			w:    Weightings{MarketOpportunity: 25.5, Team: 25, Traction: 20, Product: 15, CompetitivePosition: 15},
		},
		{
			name:    "sum too high",
			w:       Weightings{MarketOpportunity: 40, Team: 25, Traction: 20, Product: 15, CompetitivePosition: 15},
			wantErr: "sum to 100",
		},
		{
			name:    "sum too low",
			w:       Weightings{MarketOpportunity: 10, Team: 10, Traction: 10, Product: 10, CompetitivePosition: 10},
			wantErr: "sum to 100",
		},
		{
			name:    "negative component",
			w:       Weightings{MarketOpportunity: 50, Team: 25, Traction: 20, Product: 15, CompetitivePosition: -10},
			wantErr: "competitive_position must be >= 0",
		},
		{
			name:    "zero value",
			w:       Weightings{},
			wantErr: "sum to 100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
