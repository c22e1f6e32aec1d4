package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticTierResolverDefaultsToFree(t *testing.T) {
	r := NewStaticTierResolver("u-elevated")

	tier, err := r.TierOf(context.Background(), "u-free")
	require.NoError(t, err)
	require.Equal(t, TierFree, tier)
}

func TestStaticTierResolverHonorsElevatedList(t *testing.T) {
	r := NewStaticTierResolver("u-elevated")

	tier, err := r.TierOf(context.Background(), "u-elevated")
	require.NoError(t, err)
	require.Equal(t, TierElevated, tier)
}
