package smartcache

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// KeyFunc derives the store key of a query execution from the query id and
// the bound arguments. Different arguments must yield different keys.
type KeyFunc func(queryID string, args []driver.NamedValue) (string, error)

type hashedArg struct {
	Name    string
	Ordinal int
	Value   interface{}
}

// hashableValue maps an argument to a value hashstructure sees completely.
// Valuers are resolved first. Basic kinds are hashed as they are; anything
// else, whose state may live in unexported fields, is hashed through its
// type and formatted value.
func hashableValue(v driver.Value) (interface{}, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, nil
		}
		var err error
		if v, err = valuer.Value(); err != nil {
			return nil, err
		}
	}

	switch x := v.(type) {
	case nil, []byte:
		return v, nil
	case time.Time:
		return "time:" + x.UTC().Format(time.RFC3339Nano), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, nil
	}
	return fmt.Sprintf("%T:%v", v, v), nil
}

func defaultKeyFunc(queryID string, args []driver.NamedValue) (string, error) {
	hashed := make([]hashedArg, len(args))
	for i, a := range args {
		v, err := hashableValue(a.Value)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", a.Ordinal, err)
		}
		hashed[i] = hashedArg{Name: a.Name, Ordinal: a.Ordinal, Value: v}
	}
	u64, err := hashstructure.Hash(hashed, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("q%sa%dh%s", queryID, len(args), strconv.FormatUint(u64, 10))
	return key, nil
}

// NoopKey returns the query id followed by a string representation of the
// args. Keys are readable but unbounded in length.
func NoopKey(queryID string, args []driver.NamedValue) (string, error) {
	var b strings.Builder
	b.Grow(len(queryID) + len(args)*10) // arbitrary
	b.WriteString(queryID)
	b.WriteRune(':')
	for _, a := range args {
		v, err := hashableValue(a.Value)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", a.Ordinal, err)
		}
		b.WriteString(fmt.Sprintf("[%s %d %v]", a.Name, a.Ordinal, v))
	}

	return b.String(), nil
}
