package fbmoney

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat(t *testing.T) {
	assert.Equal(t, Money(1999), FromFloat(19.99))
	assert.Equal(t, Money(10), FromFloat(0.1))
	assert.Equal(t, Money(30), FromFloat(0.1+0.2))
	assert.Equal(t, int64(4990), FromFloat(49.9).Cents())
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price Money `json:"price"`
	}{Money(1050)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":10.50}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":97.0,"b":"12.34","c":null}`), &in))
	assert.Equal(t, Money(9700), in.A)
	assert.Equal(t, Money(1234), in.B)
	assert.Equal(t, Money(0), in.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &in))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, Round2(100.0/3))
	assert.Equal(t, 12.0, Round2(12))
}
