package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStringFormatsIntegralFloatsWithoutDecimal(t *testing.T) {
	assert.Equal(t, "3", ToString(3.0))
	assert.Equal(t, "3.5", ToString(3.5))
}

func TestTruthyMatchesJinjaSemantics(t *testing.T) {
	assert.True(t, Truthy(1.0))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy([]interface{}{1}))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy([]interface{}{}))
	assert.False(t, Truthy(Undefined{Name: "x"}))
}

func TestArithmeticHelpers(t *testing.T) {
	v, err := Add(1.0, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = Mul("ab", 3.0)
	require.NoError(t, err)
	assert.Equal(t, "ababab", v)

	v, err = FloorDiv(7.0, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = Mod(7.0, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = Div(1.0, 0.0)
	assert.Error(t, err)
}

func TestConcatAlwaysStringifies(t *testing.T) {
	assert.Equal(t, "a1", Concat("a", 1.0))
}

func TestEqualAcrossNumericTypes(t *testing.T) {
	assert.True(t, Equal(1.0, 1.0))
	assert.False(t, Equal(1.0, "1.0"))
	assert.False(t, Equal(1.0, "bar"))
}

func TestCompareOrdersNumbersAndStrings(t *testing.T) {
	c, err := Compare(1.0, 2.0)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare("b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestInOperator(t *testing.T) {
	assert.True(t, InOperator("ell", "hello"))
	assert.True(t, InOperator(2.0, []interface{}{1.0, 2.0, 3.0}))
	assert.True(t, InOperator("k", map[string]interface{}{"k": 1}))
	assert.False(t, InOperator("z", []interface{}{1.0}))
}

func TestFromIteratorSortsMapPairsByKey(t *testing.T) {
	items, isMap := FromIterator(map[string]interface{}{"b": 2.0, "a": 1.0})
	require.True(t, isMap)
	require.Len(t, items, 2)
	first := items[0].([]interface{})
	assert.Equal(t, "a", first[0])
}

func TestMemberLookupHandlesMapsSlicesAndNegativeIndex(t *testing.T) {
	m := map[string]interface{}{"x": 1.0}
	assert.Equal(t, 1.0, MemberLookup(m, "x"))

	s := []interface{}{"a", "b", "c"}
	assert.Equal(t, "c", MemberLookup(s, -1.0))

	assert.IsType(t, Undefined{}, MemberLookup(nil, "x"))
}
