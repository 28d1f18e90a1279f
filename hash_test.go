package smartcache

import (
	"database/sql/driver"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNoopKey(t *testing.T) {
	assert := require.New(t)

	tcs := []struct {
		queryID  string
		args     []driver.NamedValue
		expected string
	}{
		{
			queryID: "1548380386",
			args: []driver.NamedValue{
				{
					Ordinal: 1,
					Value:   10,
				},
			},
			expected: "1548380386:[ 1 10]",
		},
		{
			queryID: "7",
			args: []driver.NamedValue{
				{Name: "since", Ordinal: 1, Value: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
				{Ordinal: 2, Value: "x"},
			},
			expected: "7:[since 1 time:2024-01-02T03:04:05Z][ 2 x]",
		},
		{
			queryID:  "7",
			expected: "7:",
		},
	}

	for _, tc := range tcs {
		h, err := NoopKey(tc.queryID, tc.args)
		assert.Nil(err)
		assert.Equal(tc.expected, h)
	}
}

func TestDefaultKeyFunc(t *testing.T) {
	assert := require.New(t)

	key := func(id string, values ...driver.Value) string {
		args := make([]driver.NamedValue, len(values))
		for i, v := range values {
			args[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
		}
		k, err := defaultKeyFunc(id, args)
		assert.Nil(err)
		return k
	}

	assert.Equal(key("1", int64(18)), key("1", int64(18)))
	assert.NotEqual(key("1", int64(18)), key("1", int64(19)))
	assert.NotEqual(key("1", int64(18)), key("2", int64(18)))
	assert.NotEqual(key("1", "a", "b"), key("1", "b", "a"))
	assert.NotEqual(key("1"), key("1", nil))

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(key("1", t1), key("1", t1.Add(time.Second)))
	assert.Equal(key("1", t1), key("1", t1.In(time.FixedZone("X", 3600))))

	assert.Regexp(`^q1a1h[0-9]+$`, key("1", int64(18)))
}

// money keeps its state in an unexported field and is not a Valuer.
type money struct {
	cents int64
}

type failingValuer struct{}

func (failingValuer) Value() (driver.Value, error) {
	return nil, errors.New("cannot convert")
}

type nullableID struct {
	id int64
}

func (n *nullableID) Value() (driver.Value, error) {
	return n.id, nil
}

func TestDefaultKeyFuncOpaqueArgs(t *testing.T) {
	assert := require.New(t)

	key := func(v driver.Value) string {
		k, err := defaultKeyFunc("1", []driver.NamedValue{{Ordinal: 1, Value: v}})
		assert.Nil(err)
		return k
	}

	// Valuers hash by their driver value
	assert.NotEqual(key(decimal.NewFromInt(5)), key(decimal.NewFromInt(10)))
	assert.Equal(key(decimal.RequireFromString("5.5")), key(decimal.RequireFromString("5.5")))
	assert.Equal(key(decimal.NewFromInt(5)), key("5"))

	// other types hash by their formatted value
	assert.NotEqual(key(big.NewInt(1)), key(big.NewInt(2)))
	assert.Equal(key(big.NewInt(7)), key(big.NewInt(7)))
	assert.NotEqual(key(money{cents: 100}), key(money{cents: 200}))
	assert.NotEqual(key(money{cents: 5}), key(big.NewInt(5)))

	// a nil pointer Valuer is NULL
	var nilID *nullableID
	assert.Equal(key(nil), key(nilID))
	assert.Equal(key(int64(3)), key(&nullableID{id: 3}))

	_, err := defaultKeyFunc("1", []driver.NamedValue{{Ordinal: 1, Value: failingValuer{}}})
	assert.NotNil(err)
	_, err = NoopKey("1", []driver.NamedValue{{Ordinal: 1, Value: failingValuer{}}})
	assert.NotNil(err)
}
