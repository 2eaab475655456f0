package driver

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// runKeyValueContract exercises the behaviour every KeyValueDB shares.
// clock may be nil for backends whose time cannot be controlled.
func runKeyValueContract(t *testing.T, kv KeyValueDB, clock *fakeClock) {
	ctx := context.Background()
	key := "contract:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { kv.Delete(ctx, key) })

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, key)
		assert.ErrorIs(t, err, ErrKeyNotFound)
		ok, err := kv.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, key, `[{"id":1}]`))
		v, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, v)
		ok, err := kv.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, key, "second"))
		v, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, kv.Delete(ctx, key))
		_, err := kv.Get(ctx, key)
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.NoError(t, kv.Delete(ctx, key), "deleting a missing key is not an error")
	})

	if clock == nil {
		return
	}
	t.Run("expiration", func(t *testing.T) {
		require.NoError(t, kv.SetEX(ctx, key, "token", time.Minute))
		clock.Advance(59 * time.Second)
		v, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "token", v)

		clock.Advance(time.Second)
		_, err = kv.Get(ctx, key)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestMemoryKV(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	kv := NewMemoryKV()
	kv.now = clock.Now
	require.NoError(t, kv.Ping(context.Background()))
	runKeyValueContract(t, kv, clock)
}

func TestFileKV(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	kv.now = clock.Now
	require.NoError(t, kv.Ping(context.Background()))
	runKeyValueContract(t, kv, clock)
}

func TestFileKV_KeysWithSeparators(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, "trilha:catalogue/../x", "a"))
	require.NoError(t, kv.Set(ctx, "trilha:catalogue", "b"))

	v, err := kv.Get(ctx, "trilha:catalogue/../x")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = kv.Get(ctx, "trilha:catalogue")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestFileKV_CorruptedEntry(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(kv.path("broken"), []byte("{not json"), 0o644))

	_, err = kv.Get(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestNewFileKV_RequiresDir(t *testing.T) {
	_, err := NewFileKV("")
	assert.Error(t, err)
}

func TestRedisClient(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	host, port := splitHostPort(t, addr)
	kv := NewRedisClient(&RedisConfig{Host: host, Port: port})
	defer kv.Close()
	require.NoError(t, kv.Ping(context.Background()))
	runKeyValueContract(t, kv, nil)
}

func TestSQLKeyValueDB_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := NewPostgreSQLConn(ctx, dsn, &DBConfig{MaxConn: 2})
	require.NoError(t, err)
	runSQLKeyValueContract(t, db, DriverPostgres)
}

func TestSQLKeyValueDB_MySQL(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := NewMySQLConn(dsn, &DBConfig{MaxConn: 2})
	require.NoError(t, err)
	runSQLKeyValueContract(t, db, DriverMySQL)
}

func runSQLKeyValueContract(t *testing.T, db ITransactionalDB, driver string) {
	kv, err := NewSQLKeyValueDB(db, driver)
	require.NoError(t, err)
	defer kv.Close()

	clock := &fakeClock{t: time.Now()}
	kv.now = clock.Now
	require.NoError(t, kv.Ping(context.Background()))
	require.NoError(t, kv.EnsureSchema(context.Background()))
	runKeyValueContract(t, kv, clock)
}

func TestNewSQLKeyValueDB_UnknownDriver(t *testing.T) {
	_, err := NewSQLKeyValueDB(nil, "sqlite")
	assert.Error(t, err)
}

func TestMysqlAdapter(t *testing.T) {
	got := mysqlAdapter(`SELECT "kv_value"
		FROM kv_store WHERE kv_key = $1 AND expires_at > $2`)
	assert.Equal(t, "SELECT `kv_value` FROM kv_store WHERE kv_key = ? AND expires_at > ?", got)
}

func TestGetDSN(t *testing.T) {
	assert.Equal(t, "root:pw@tcp(db:3306)/trilha?parseTime=true", getDSN(&DBConfig{
		User: "root", Password: "pw", Protocol: "tcp", Host: "db", Port: 3306, Schema: "trilha", Query: "parseTime=true",
	}))
	assert.Equal(t, "app:pw@db:5432/trilha", getDSN(&DBConfig{
		User: "app", Password: "pw", Host: "db", Port: 5432, Schema: "trilha",
	}))
}

func TestGetDBConnection_Validation(t *testing.T) {
	_, err := GetDBConnection(context.Background(), &DBConfig{Driver: DriverMySQL})
	assert.Error(t, err)
	_, err = GetDBConnection(context.Background(), &DBConfig{Driver: "oracle", Host: "h", User: "u", Schema: "s"})
	assert.Error(t, err)
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}
