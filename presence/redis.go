package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	fieldBox   = "box"
	fieldSeen  = "seen"
	fieldConns = "conns"
)

// leaveScript drops one socket from the shared count and removes the hash
// when no process holds a socket for the user any more.
var leaveScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], 'conns', -1)
if n <= 0 then
	redis.call('DEL', KEYS[1])
end
redis.call('SET', KEYS[2], ARGV[1])
return n
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis keeps presence in a hash per user, shared by every process. The hash
// counts open sockets across processes and carries a TTL renewed by Touch,
// so a crashed process cannot leave users online forever. The last seen
// time outlives the hash in its own key.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return newRedis(rdb, ttl), nil
}

func newRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, prefix: "wayfarer:"}
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) onlineKey(user primitive.ObjectID) string { return r.prefix + "presence:" + user.Hex() }
func (r *Redis) seenKey(user primitive.ObjectID) string   { return r.prefix + "lastseen:" + user.Hex() }

// SetOnline counts one more socket for user.
func (r *Redis) SetOnline(ctx context.Context, user primitive.ObjectID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	pipe := r.rdb.TxPipeline()
	pipe.HIncrBy(ctx, r.onlineKey(user), fieldConns, 1)
	pipe.HSetNX(ctx, r.onlineKey(user), fieldBox, "0")
	pipe.HSet(ctx, r.onlineKey(user), fieldSeen, now)
	pipe.Expire(ctx, r.onlineKey(user), r.ttl)
	pipe.Set(ctx, r.seenKey(user), now, 0)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence online")
}

// SetOffline releases one socket. The user stays online while any process
// still holds another.
func (r *Redis) SetOffline(ctx context.Context, user primitive.ObjectID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	err := leaveScript.Run(ctx, r.rdb, []string{r.onlineKey(user), r.seenKey(user)}, now).Err()
	return errors.Wrap(err, "presence offline")
}

func (r *Redis) SetMessageBox(ctx context.Context, user primitive.ObjectID, open bool) error {
	exists, err := r.rdb.Exists(ctx, r.onlineKey(user)).Result()
	if err != nil {
		return errors.Wrap(err, "presence lookup")
	}
	if exists == 0 {
		return nil
	}
	v := "0"
	if open {
		v = "1"
	}
	return errors.Wrap(r.rdb.HSet(ctx, r.onlineKey(user), fieldBox, v).Err(), "presence message box")
}

// Touch is called for a live socket. It renews the TTL and recreates the
// hash with one socket if it already expired.
func (r *Redis) Touch(ctx context.Context, user primitive.ObjectID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	pipe := r.rdb.TxPipeline()
	pipe.HSetNX(ctx, r.onlineKey(user), fieldConns, "1")
	pipe.HSetNX(ctx, r.onlineKey(user), fieldBox, "0")
	pipe.HSet(ctx, r.onlineKey(user), fieldSeen, now)
	pipe.Expire(ctx, r.onlineKey(user), r.ttl)
	pipe.Set(ctx, r.seenKey(user), now, 0)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence touch")
}

func (r *Redis) Status(ctx context.Context, user primitive.ObjectID) (Status, error) {
	var st Status

	fields, err := r.rdb.HGetAll(ctx, r.onlineKey(user)).Result()
	if err != nil {
		return st, errors.Wrap(err, "presence status")
	}
	if len(fields) > 0 {
		st.Online = true
		st.InMessageBox = fields[fieldBox] == "1"
	}

	seen, err := r.rdb.Get(ctx, r.seenKey(user)).Int64()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, errors.Wrap(err, "presence last seen")
	}
	st.LastSeen = time.Unix(seen, 0)
	return st, nil
}
