package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/prashanthpai/smartcache"
	"github.com/prashanthpai/smartcache/config"
	"github.com/prashanthpai/smartcache/rules"
)

func run(t *testing.T, mr *miniredis.Miniredis, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--redis-addr", mr.Addr()}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func stored(t *testing.T, mr *miniredis.Miniredis, key string) *config.Snapshot {
	t.Helper()

	doc, err := mr.Get(key)
	require.Nil(t, err)
	s, err := config.Parse([]byte(doc))
	require.Nil(t, err)
	return s
}

func TestRulesAddListRemove(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	out, err := run(t, mr, "rules", "add", "--kind", "tablesAny", "--values", "books, authors", "--ttl", "5m")
	assert.Nil(err)
	assert.Contains(out, "added rule 0")

	out, err = run(t, mr, "rules", "add", "--kind", "regex", "--values", "SELECT .* FROM books WHERE id IN (1,2)", "--ttl", "3600", "--position", "0")
	assert.Nil(err)
	assert.Contains(out, "added rule 0")

	s := stored(t, mr, "smartcache:config")
	assert.Equal(config.DefaultBufferCapacity, s.BufferCapacity)
	rs := s.Ruleset.Rules()
	assert.Len(rs, 2)
	assert.Equal(rules.Regex, rs[0].Kind())
	assert.Equal([]string{"SELECT .* FROM books WHERE id IN (1,2)"}, rs[0].Values())
	assert.Equal(time.Hour, rs[0].TTL())
	assert.Equal(rules.TablesAny, rs[1].Kind())
	assert.Equal([]string{"books", "authors"}, rs[1].Values())
	assert.Equal(5*time.Minute, rs[1].TTL())

	out, err = run(t, mr, "rules", "list")
	assert.Nil(err)
	assert.Contains(out, "INDEX")
	assert.Contains(out, "tablesAny")
	assert.Contains(out, "books,authors")

	_, err = run(t, mr, "rules", "remove", "5")
	assert.NotNil(err)

	out, err = run(t, mr, "rules", "remove", "0")
	assert.Nil(err)
	assert.Contains(out, "removed rule 0: regex")

	rs = stored(t, mr, "smartcache:config").Ruleset.Rules()
	assert.Len(rs, 1)
	assert.Equal(rules.TablesAny, rs[0].Kind())
}

func TestRulesAddInvalid(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	for name, args := range map[string][]string{
		"unknown kind":         {"--kind", "columns", "--values", "a", "--ttl", "1m"},
		"bad ttl":              {"--kind", "tables", "--values", "a", "--ttl", "soon"},
		"negative ttl":         {"--kind", "tables", "--values", "a", "--ttl=-1m"},
		"bad regex":            {"--kind", "regex", "--values", "(", "--ttl", "1m"},
		"passthrough + values": {"--kind", "passthrough", "--values", "a", "--ttl", "0"},
		"missing ttl":          {"--kind", "tables", "--values", "a"},
	} {
		_, err := run(t, mr, append([]string{"rules", "add"}, args...)...)
		assert.NotNil(err, name)
	}
	assert.False(mr.Exists("smartcache:config"))
}

func TestConfigPushAndShow(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	out, err := run(t, mr, "config", "show")
	assert.Nil(err)
	s, err := config.Parse([]byte(out))
	assert.Nil(err)
	assert.Equal(0, s.Ruleset.Len())

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	assert.Nil(os.WriteFile(good, []byte(`{
		"bufferCapacity": 2048,
		"rules": [{"matchKind": "tables", "matchValues": ["orders"], "ttl": 30}]
	}`), 0o644))
	bad := filepath.Join(dir, "bad.json")
	assert.Nil(os.WriteFile(bad, []byte(`{"rules": [{"matchKind": "regex", "ttl": "1m"}]}`), 0o644))

	_, err = run(t, mr, "config", "push", bad)
	assert.True(errors.Is(err, rules.ErrInvalidRule))
	assert.False(mr.Exists("smartcache:config"))

	out, err = run(t, mr, "config", "push", good)
	assert.Nil(err)
	assert.Contains(out, "stored 1 rules")

	out, err = run(t, mr, "config", "show")
	assert.Nil(err)
	s, err = config.Parse([]byte(out))
	assert.Nil(err)
	assert.Equal(2048, s.BufferCapacity)
	assert.Equal(30*time.Second, s.Ruleset.Rules()[0].TTL())
}

func TestConfigPushNotifies(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	defer rc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changes, err := config.NewRedisSource(rc, "smartcache:config").Watch(ctx)
	assert.Nil(err)

	_, err = run(t, mr, "rules", "add", "--kind", "passthrough", "--ttl", "0")
	assert.Nil(err)

	select {
	case <-changes:
	case <-ctx.Done():
		t.Fatal("no change notification")
	}
}

func TestSettingsFromEnvAndFile(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	t.Setenv("SMARTCACHE_CONFIG_KEY", "env:config")
	_, err := run(t, mr, "rules", "add", "--kind", "tables", "--values", "a", "--ttl", "1m")
	assert.Nil(err)
	assert.True(mr.Exists("env:config"))

	file := filepath.Join(t.TempDir(), "smartcachectl.yaml")
	assert.Nil(os.WriteFile(file, []byte("config_key: file:config\n"), 0o644))
	t.Setenv("SMARTCACHE_CONFIG_KEY", "")
	_, err = run(t, mr, "--config", file, "rules", "add", "--kind", "tables", "--values", "b", "--ttl", "1m")
	assert.Nil(err)
	assert.True(mr.Exists("file:config"))

	// flags win
	_, err = run(t, mr, "--config", file, "--config-key", "flag:config", "rules", "add", "--kind", "tables", "--values", "c", "--ttl", "1m")
	assert.Nil(err)
	assert.True(mr.Exists("flag:config"))
}

func TestQueriesList(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)

	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	defer rc.Close()
	log := smartcache.NewRedisQueryLog(rc, "smartcache:")
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Nil(log.Record(context.Background(), smartcache.QueryInfo{
		ID: "3632233996", SQL: "SELECT *\n  FROM books", Tables: []string{"books"}, Parsed: true, Seen: seen,
	}))
	assert.Nil(log.Record(context.Background(), smartcache.QueryInfo{
		ID: "12", SQL: "VACUUM", Seen: seen,
	}))

	out, err := run(t, mr, "queries", "list")
	assert.Nil(err)
	assert.Contains(out, "3632233996")
	assert.Contains(out, "SELECT * FROM books")
	assert.Contains(out, "(unparsed)")

	out, err = run(t, mr, "queries", "list", "--json")
	assert.Nil(err)
	var infos []smartcache.QueryInfo
	assert.Nil(json.Unmarshal([]byte(out), &infos))
	assert.Len(infos, 2)
	assert.Equal("12", infos[0].ID)
	assert.Equal([]string{"books"}, infos[1].Tables)
	assert.True(seen.Equal(infos[1].Seen))
}

func TestRulesOnDocumentFile(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)
	doc := filepath.Join(t.TempDir(), "smartcache.json")

	_, err := run(t, mr, "--document", doc, "rules", "add", "--kind", "tablesAll", "--values", "orders,customers", "--ttl", "90s")
	assert.Nil(err)
	assert.False(mr.Exists("smartcache:config"))

	b, err := os.ReadFile(doc)
	assert.Nil(err)
	s, err := config.Parse(b)
	assert.Nil(err)
	assert.Equal(rules.TablesAll, s.Ruleset.Rules()[0].Kind())
	assert.Equal(90*time.Second, s.Ruleset.Rules()[0].TTL())
}
