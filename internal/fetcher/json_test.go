package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONArray_CensusTable(t *testing.T) {
	input := `[["NAME","B01003_001E","state","county","tract"],
["Census Tract 1; Collin County; Texas","4500","48","085","000100"],
["Census Tract 2; Collin County; Texas",null,"48","085","000200"]]`

	rows, err := ReadJSONArray[[]string](context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "B01003_001E", rows[0][1])
	assert.Equal(t, "4500", rows[1][1])
	assert.Equal(t, "", rows[2][1], "null decodes to empty string")
}

func TestReadJSONArray_EmptyInput(t *testing.T) {
	rows, err := ReadJSONArray[[]string](context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadJSONArray_NotAnArray(t *testing.T) {
	_, err := ReadJSONArray[[]string](context.Background(), strings.NewReader(`{"error":"bad"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestReadJSONArray_Malformed(t *testing.T) {
	_, err := ReadJSONArray[[]string](context.Background(), strings.NewReader(`[["a"],[1,`))
	require.Error(t, err)
}

func TestDecodeJSONArray_ContextCancelled(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := range 500 {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`["x"]`)
	}
	sb.WriteString("]")

	ctx, cancel := context.WithCancel(context.Background())
	outCh, errCh := DecodeJSONArray[[]string](ctx, strings.NewReader(sb.String()))
	<-outCh
	cancel()
	for range outCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestDecodeJSONObject(t *testing.T) {
	type obj struct {
		Name string `json:"name"`
	}
	got, err := DecodeJSONObject[obj](strings.NewReader(`{"name":"Plano"}`))
	require.NoError(t, err)
	assert.Equal(t, "Plano", got.Name)

	_, err = DecodeJSONObject[obj](strings.NewReader(`nope`))
	require.Error(t, err)
}
