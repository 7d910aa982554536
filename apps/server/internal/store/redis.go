package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"royalcourt/court"
)

const (
	redisKeyPrefix     = "court:session:"
	redisChannelPrefix = "court:updates:"
)

// RedisStore keeps each session as one JSON string. Updates use
// WATCH/MULTI and announce the new record on a per-room channel.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	log logrus.FieldLogger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// RoomTTL expires idle rooms; 0 keeps them forever.
	RoomTTL time.Duration
}

func NewRedisStore(opts RedisOptions, log logrus.FieldLogger) (*RedisStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisStore{rdb: rdb, ttl: opts.RoomTTL, log: log.WithField("component", "store.redis")}, nil
}

func redisKey(code string) string     { return redisKeyPrefix + code }
func redisChannel(code string) string { return redisChannelPrefix + code }

func (r *RedisStore) Create(ctx context.Context, s *court.Session) error {
	s.Version = 1
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, redisKey(s.Code), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, code string) (*court.Session, error) {
	data, err := r.rdb.Get(ctx, redisKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(data)
}

func (r *RedisStore) Update(ctx context.Context, baseVersion uint64, next *court.Session) error {
	stored := next.Clone()
	stored.Version = baseVersion + 1
	data, err := encodeSession(stored)
	if err != nil {
		return err
	}
	key := redisKey(stored.Code)

	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var head struct {
			Version uint64 `json:"version"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return err
		}
		if head.Version != baseVersion {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			p.Publish(ctx, redisChannel(stored.Code), data)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	next.Version = stored.Version
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, code string) error {
	return r.rdb.Del(ctx, redisKey(code)).Err()
}

func (r *RedisStore) Subscribe(ctx context.Context, code string) (<-chan *court.Session, error) {
	ps := r.rdb.Subscribe(ctx, redisChannel(code))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan *court.Session, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s, err := decodeSession([]byte(msg.Payload))
				if err != nil {
					r.log.WithError(err).WithField("room", code).Warn("drop undecodable update")
					continue
				}
				offerLatest(out, s)
			}
		}
	}()
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
