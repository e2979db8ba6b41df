package expression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_MarshalJSON(t *testing.T) {
	p := MustParse("2 + 3 * @pe-市盈率")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"expression":"2 + 3 * @pe-市盈率","rpn":[2,3,"pe-市盈率","*","+"]}`, string(data))
}

func TestProgram_UnmarshalJSON(t *testing.T) {
	original := MustParse("(@mll-毛利率[%]-1 + 4) / 2")
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Program
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Tokens(), decoded.Tokens())
	assert.Equal(t, original.Source(), decoded.Source())

	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestProgram_UnmarshalJSON_ExpressionOnly(t *testing.T) {
	var p Program
	require.NoError(t, json.Unmarshal([]byte(`{"expression":"1 + 2"}`), &p))
	assert.Equal(t, "1 2 +", p.String())
}

func TestProgram_UnmarshalJSON_RejectsMismatchedRPN(t *testing.T) {
	var p Program
	err := json.Unmarshal([]byte(`{"expression":"1 + 2","rpn":[1,2,"-"]}`), &p)
	assert.ErrorIs(t, err, ErrMalformedProgram)
}

func TestProgram_UnmarshalJSON_RejectsBadExpression(t *testing.T) {
	var p Program
	err := json.Unmarshal([]byte(`{"expression":"1 +","rpn":[1,"+"]}`), &p)
	assert.ErrorIs(t, err, ErrExtraOperator)
}

func TestProgram_InsideStruct(t *testing.T) {
	type schema struct {
		ID      string   `json:"id"`
		Program *Program `json:"program,omitempty"`
	}

	in := schema{ID: "a", Program: MustParse("@x-甲 * 2")}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out schema
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotNil(t, out.Program)
	assert.Equal(t, "x-甲 2 *", out.Program.String())
}
