package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParseChain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Chain
		wantErr  bool
	}{
		{
			name:     "upper case",
			input:    "MATIC",
			expected: ChainMatic,
		},
		{
			name:     "mixed case with spaces",
			input:    " Matic ",
			expected: ChainMatic,
		},
		{
			name:     "ethereum",
			input:    "ethereum",
			expected: ChainEthereum,
		},
		{
			name:    "unknown",
			input:   "dogecoin",
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
			chain, err := ParseChain(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidChain), "expected ErrInvalidChain, got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, chain)
		})
	}
}
