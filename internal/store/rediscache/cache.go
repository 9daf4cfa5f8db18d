// Package rediscache keeps computed availability in Redis. Entries are keyed
// by a per-staff generation counter; bumping the counter orphans every entry
// for that staff member, and the TTL reclaims them.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "salonbook:slots:"

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type SlotKey struct {
	StaffID         uuid.UUID
	Date            time.Time
	DurationMinutes int
	Granularity     time.Duration
}

// Entry is the result of a lookup. On a miss it still pins the generation
// that was current before the caller computed its slots, so a Store racing
// with an Invalidate writes under a key nobody will read.
type Entry struct {
	Hit   bool
	Slots []time.Time

	key string
	loc *time.Location
}

type SlotCache struct {
	client Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func New(client Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SlotCache{client: client, ttl: ttl}
}

func generationKey(staffID uuid.UUID) string {
	return keyPrefix + "gen:" + staffID.String()
}

func slotsKey(gen int64, k SlotKey) string {
	return fmt.Sprintf("%s%s:%d:%s:%d:%d",
		keyPrefix, k.StaffID, gen, k.Date.Format("2006-01-02"), k.DurationMinutes, int64(k.Granularity/time.Minute))
}

func (c *SlotCache) generation(ctx context.Context, staffID uuid.UUID) (int64, error) {
	raw, err := c.client.Get(ctx, generationKey(staffID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *SlotCache) Lookup(ctx context.Context, k SlotKey) (Entry, error) {
	gen, err := c.generation(ctx, k.StaffID)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{key: slotsKey(gen, k), loc: k.Date.Location()}
	raw, err := c.client.Get(ctx, e.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, nil
	}
	if err != nil {
		return Entry{}, err
	}

	var slots []time.Time
	if err := json.Unmarshal(raw, &slots); err != nil {
		// Treat an undecodable entry as a miss; Store overwrites it.
		return e, nil
	}
	for i := range slots {
		slots[i] = slots[i].In(e.loc)
	}
	e.Hit = true
	e.Slots = slots
	return e, nil
}

func (c *SlotCache) Store(ctx context.Context, e Entry, slots []time.Time) error {
	if e.key == "" {
		return errors.New("rediscache: entry was not produced by Lookup")
	}
	if slots == nil {
		slots = []time.Time{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, e.key, data, c.ttl).Err()
}

// Invalidate bumps the staff generation so that every cached day is recomputed.
func (c *SlotCache) Invalidate(ctx context.Context, staffID uuid.UUID) error {
	return c.client.Incr(ctx, generationKey(staffID)).Err()
}

func (c *SlotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
