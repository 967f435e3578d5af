package container

import (
	"context"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type english struct{ name string }

func (e *english) Greet() string { return "hello " + e.name }

func TestContainer(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	t.Run("resolves registered instances", func(t *testing.T) {
		c, err := New(uuid.NewString(), logger)
		require.NoError(t, err)
		require.NoError(t, Instance[greeter](c, &english{name: "willow"}))

		ctx, err := ectoinject.SetActiveContainer(context.Background(), c.GetContainerID())
		require.NoError(t, err)

		_, g, err := ectoinject.GetContext[greeter](ctx)
		require.NoError(t, err)
		assert.Equal(t, "hello willow", g.Greet())
	})

	t.Run("missing dependency", func(t *testing.T) {
		c, err := New(uuid.NewString(), logger)
		require.NoError(t, err)

		ctx, err := ectoinject.SetActiveContainer(context.Background(), c.GetContainerID())
		require.NoError(t, err)

		_, _, err = ectoinject.GetContext[greeter](ctx)
		assert.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		id := uuid.NewString()
		_, err := New(id, logger)
		require.NoError(t, err)

		_, err = New(id, logger)
		assert.Error(t, err)
	})
}
