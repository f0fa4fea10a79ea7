package interactive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
)

func TestFuzzySearch(t *testing.T) {
	items := []string{"Counter", "CounterV2", "GovernanceToken"}
	search := createFuzzySearchFunc(items)

	tests := []struct {
		input string
		index int
		want  bool
	}{
		{"", 2, true},
		{"count", 0, true},
		{"cv2", 1, true},
		{"gtok", 2, true},
		{"xyz", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, search(tt.input, tt.index))
		})
	}
}

func TestSelectArtifact_NoPrompt(t *testing.T) {
	s := NewSelectorAdapter(&config.RuntimeConfig{})

	name, err := s.SelectArtifact(context.Background(), []string{"Counter"}, "Select")
	require.NoError(t, err)
	assert.Equal(t, "Counter", name)

	_, err = s.SelectArtifact(context.Background(), nil, "Select")
	assert.Error(t, err)
}

func TestSelectorAdapter_NonInteractive(t *testing.T) {
	s := NewSelectorAdapter(&config.RuntimeConfig{NonInteractive: true})

	_, err := s.SelectArtifact(context.Background(), []string{"A", "B"}, "Select")
	assert.ErrorIs(t, err, domain.ErrConfig)

	ok, err := s.Confirm(context.Background(), "Remove?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrConfig)
}
