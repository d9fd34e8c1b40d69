package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	for _, in := range []string{"Item_ID", "item id", " ITEM-ID ", "item   id", `="Item ID"`} {
		assert.Equal(t, "item id", normalizeHeader(in), in)
	}
}

func TestHeaderResolver_MapRow(t *testing.T) {
	r := newHeaderResolver(stockDefinition(), map[string]string{"Part #": "code"})

	got := r.mapRow(ImportRow{
		"SKU":       "",
		"Part #":    "A1",
		"Unit Cost": "2.50",
		"value":     "999",
		"Comments":  "dropped",
	})

	assert.Equal(t, map[string]string{"code": "A1", "unit_cost": "2.50"}, got)
}

func TestLoadHeaderMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  items:\n    \"SKU #\": item_id\n"), 0o600))

	m, err := LoadHeaderMapping(path)
	require.NoError(t, err)
	assert.Equal(t, "item_id", m["items"]["sku #"])

	empty, err := LoadHeaderMapping("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadHeaderMapping(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestHeaderMapping_Validate(t *testing.T) {
	isolateRegistry(t)
	Register(stockDefinition())

	assert.NoError(t, HeaderMapping{"stock": {"part": "code"}}.Validate())
	assert.ErrorContains(t, HeaderMapping{"widgets": {"a": "b"}}.Validate(), `unknown entity "widgets"`)
	assert.ErrorContains(t, HeaderMapping{"stock": {"v": "value"}}.Validate(), "unknown or derived")
}

func TestHeaderResolver_CollidingHeadersResolveByPrecedence(t *testing.T) {
	r := newHeaderResolver(stockDefinition(), map[string]string{"Part #": "code"})

	tests := []struct {
		name string
		row  ImportRow
		want string
	}{
		{"name beats alias", ImportRow{"sku": "FROM-SKU", "code": "FROM-CODE"}, "FROM-CODE"},
		{"alias beats override", ImportRow{"SKU": "FROM-SKU", "Part #": "FROM-PART"}, "FROM-SKU"},
		{"non-blank beats precedence", ImportRow{"code": " ", "sku": "FROM-SKU"}, "FROM-SKU"},
		{"same normalized header", ImportRow{"Code": "UPPER", "code": "lower"}, "UPPER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 200 {
				got := r.mapRow(tt.row)
				require.Equal(t, tt.want, got["code"])
			}
		})
	}
}
