package fbfunnels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestCopyMapIsDeep(t *testing.T) {
	src := datatypes.JSONMap{
		"nested": map[string]any{"k": "v"},
		"list":   []any{map[string]any{"x": 1.0}, "s"},
		"n":      3.0,
	}

	dst := copyMap(src)
	dst["nested"].(map[string]any)["k"] = "changed"
	dst["list"].([]any)[0].(map[string]any)["x"] = 2.0
	dst["n"] = 4.0

	assert.Equal(t, "v", src["nested"].(map[string]any)["k"])
	assert.Equal(t, 1.0, src["list"].([]any)[0].(map[string]any)["x"])
	assert.Equal(t, 3.0, src["n"])
}

func TestToMapNil(t *testing.T) {
	m := toMap(nil)
	assert.NotNil(t, m)
	assert.Empty(t, m)
}
