package lineage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/models"
)

func TestChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.repo.addEntity("a", "A")
	f.repo.addEntity("b", "B")
	f.repo.addEntity("c", "C")
	f.repo.relate("AB", "a", "b")
	f.repo.relate("BC", "b", "c")

	t.Run("walks every hop", func(t *testing.T) {
		out, last, err := Chain(ctx, "user", f.element("a"), f.handler.FollowAll("AB", "BC")...)
		require.NoError(t, err)
		assert.Equal(t, []string{"AB", "BC"}, edgeTypes(out))
		assert.Equal(t, "c", last.GUID)
	})

	t.Run("stops at the first missing element", func(t *testing.T) {
		out, last, err := Chain(ctx, "user", f.element("a"), f.handler.FollowAll("AB", "XX", "BC")...)
		require.NoError(t, err)
		assert.Equal(t, []string{"AB"}, edgeTypes(out))
		assert.Equal(t, "b", last.GUID)
		assert.Zero(t, f.repo.lookups("b", "BC"))
	})

	t.Run("no hops", func(t *testing.T) {
		out, last, err := Chain(ctx, "user", f.element("a"))
		require.NoError(t, err)
		assert.True(t, out.IsEmpty())
		assert.Equal(t, "a", last.GUID)
	})

	t.Run("errors stop the chain", func(t *testing.T) {
		boom := errors.New("boom")
		failing := func(context.Context, string, *models.Element) (*models.Element, *models.LineageContext, error) {
			return nil, nil, boom
		}
		_, _, err := Chain(ctx, "user", f.element("a"), f.handler.Follow("AB"), failing, f.handler.Follow("BC"))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, f.repo.lookups("b", "BC"))
	})
}
