package identifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSumString_Deterministic(t *testing.T) {
	require.Equal(t, CheckSumString("host!example.com"), CheckSumString("host!example.com"))
	require.NotEqual(t, CheckSumString("a"), CheckSumString("b"))
	require.Len(t, CheckSumString("x"), 40)
}

func TestHashValue_MapKeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"a": 1, "b": "two"}
	b := map[string]interface{}{"b": "two", "a": 1}

	require.Equal(t, HashValue(a), HashValue(b))
}

func TestHashValue_DistinguishesValues(t *testing.T) {
	require.NotEqual(t, HashValue([]interface{}{1, 2}), HashValue([]interface{}{2, 1}))
}

func TestCheckSumArray_MatchesHashValue(t *testing.T) {
	seq := []interface{}{"env", "name"}
	require.Equal(t, HashValue(seq), CheckSumArray(seq))
}

func TestObjectIdentifier_Memoised(t *testing.T) {
	first := ObjectIdentifier("host!memo-test-example")
	second := ObjectIdentifier("host!memo-test-example")
	require.Equal(t, first, second)
	require.Equal(t, CheckSumString("host!memo-test-example"), first)
}
