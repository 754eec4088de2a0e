package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/columbiacals/menud/internal/menu"
)

type stubAdapter struct {
	tag string
}

func (s *stubAdapter) University() string { return s.tag }

func (s *stubAdapter) Fetch(context.Context) ([]menu.DiningHall, error) {
	return nil, nil
}

func TestRegistryPreservesOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(&stubAdapter{tag: "columbia"}, &stubAdapter{tag: "cornell"})
	require.NoError(t, err)
	require.Equal(t, []string{"columbia", "cornell"}, reg.Universities())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&stubAdapter{tag: "columbia"}, &stubAdapter{tag: "columbia"})
	require.Error(t, err)
}

func TestRegistryFilter(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(&stubAdapter{tag: "columbia"}, &stubAdapter{tag: "cornell"})
	require.NoError(t, err)

	filtered, err := reg.Filter([]string{"cornell"})
	require.NoError(t, err)
	require.Equal(t, []string{"cornell"}, filtered.Universities())

	_, err = reg.Filter([]string{"cornell", "princeton"})
	require.Error(t, err, "unknown university must be rejected")
}
