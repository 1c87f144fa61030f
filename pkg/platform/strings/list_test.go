package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want []string
	}{
		"empty":            {"", nil},
		"blank":            {"  ", nil},
		"single":           {"ledger", []string{"ledger"}},
		"trims items":      {" ledger , auditor", []string{"ledger", "auditor"}},
		"drops repeats":    {"ledger,auditor,ledger", []string{"ledger", "auditor"}},
		"drops empties":    {"ledger,,  ,auditor,", []string{"ledger", "auditor"}},
		"keeps host:ports": {"k1:9092, k2:9092", []string{"k1:9092", "k2:9092"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitList(tc.raw))
		})
	}
}

func TestParsePairs(t *testing.T) {
	t.Run("parses and trims", func(t *testing.T) {
		got := ParsePairs("ledger=s3cret, auditor = other ")
		assert.Equal(t, map[string]string{"ledger": "s3cret", "auditor": "other"}, got)
	})

	t.Run("skips malformed items", func(t *testing.T) {
		got := ParsePairs("broken,=nameless,ok=1")
		assert.Equal(t, map[string]string{"ok": "1"}, got)
	})

	t.Run("value may contain separators", func(t *testing.T) {
		got := ParsePairs("ledger=a=b")
		assert.Equal(t, map[string]string{"ledger": "a=b"}, got)
	})

	t.Run("last value wins", func(t *testing.T) {
		got := ParsePairs("ledger=old,ledger=new")
		assert.Equal(t, "new", got["ledger"])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ParsePairs(""))
	})
}
