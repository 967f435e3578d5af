package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBuilder_OnConflict(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("lineage_settings")
	ib.Cols("tenant_id", "supported_zones")
	ib.Values("t1", "[]")
	ib.OnConflict([]string{"tenant_id"}, "supported_zones", "updated_at")

	query, args := ib.Build()
	assert.Equal(t,
		"INSERT INTO lineage_settings (tenant_id, supported_zones) VALUES ($1, $2) "+
			"ON CONFLICT (tenant_id) DO UPDATE SET supported_zones = EXCLUDED.supported_zones, updated_at = EXCLUDED.updated_at",
		query)
	assert.Equal(t, []any{"t1", "[]"}, args)
}

func TestJSONB(t *testing.T) {
	t.Run("scan bytes", func(t *testing.T) {
		var v JSONB[[]string]
		require.NoError(t, v.Scan([]byte(`["a","b"]`)))
		assert.Equal(t, []string{"a", "b"}, v.Data)
	})

	t.Run("scan null", func(t *testing.T) {
		v := NewJSONB([]string{"a"})
		require.NoError(t, v.Scan(nil))
		assert.Nil(t, v.Data)
	})

	t.Run("scan wrong type", func(t *testing.T) {
		var v JSONB[[]string]
		assert.Error(t, v.Scan(42))
	})

	t.Run("value", func(t *testing.T) {
		got, err := NewJSONB([]string{"a"}).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte(`["a"]`), got)
	})
}
