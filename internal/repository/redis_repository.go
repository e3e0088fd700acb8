package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Abu-doc/Cart/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key layout per cart (the {cartID} hash tag keeps a cart in one cluster slot):
//
//	cart:{id}:lines            ZSET productID scored by insertion sequence
//	cart:{id}:seq              insertion sequence counter
//	cart:{id}:ids              HASH itemID -> productID
//	cart:{id}:line:<productID> HASH id, qty, created (unix millis)

// incrementScript replies nil when there is no line to decrement and 0 when
// the result would exceed the limit in ARGV[5].
var incrementScript = redis.NewScript(`
local delta = tonumber(ARGV[2])
local current = tonumber(redis.call('HGET', KEYS[1], 'qty') or '0')
if current + delta > tonumber(ARGV[5]) then
	return 0
end
if redis.call('EXISTS', KEYS[1]) == 0 then
	if delta <= 0 then
		return false
	end
	local seq = redis.call('INCR', KEYS[3])
	redis.call('HSET', KEYS[1], 'id', ARGV[3], 'qty', '0', 'created', ARGV[4])
	redis.call('ZADD', KEYS[2], seq, ARGV[1])
	redis.call('HSET', KEYS[4], ARGV[3], ARGV[1])
end
local qty = redis.call('HINCRBY', KEYS[1], 'qty', delta)
local fields = redis.call('HMGET', KEYS[1], 'id', 'created')
return {fields[1], qty, fields[2]}
`)

var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return 0
end
if ARGV[3] == '1' and tonumber(redis.call('HGET', KEYS[1], 'qty')) > 0 then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('HDEL', KEYS[3], ARGV[1])
return 1
`)

var clearScript = redis.NewScript(`
local members = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, pid in ipairs(members) do
	redis.call('DEL', ARGV[1] .. pid)
end
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
return #members
`)

type redisRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRepository(client *redis.Client) CartRepository {
	return &redisRepository{
		client: client,
		now:    time.Now,
	}
}

func (r *redisRepository) Increment(ctx context.Context, cartID, productID string, delta int64) (domain.LineItem, error) {
	keys := []string{lineKey(cartID, productID), linesKey(cartID), seqKey(cartID), idsKey(cartID)}
	reply, err := incrementScript.Run(ctx, r.client, keys,
		productID, delta, uuid.NewString(), r.now().UnixMilli(), domain.MaxQty).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.LineItem{}, domain.NewStoreError("increment", err)
	}
	if _, limited := reply.(int64); limited {
		return domain.LineItem{}, domain.ErrQtyLimit
	}
	res, ok := reply.([]interface{})
	if !ok || len(res) != 3 {
		return domain.LineItem{}, domain.NewStoreError("increment", fmt.Errorf("unexpected script reply %v", reply))
	}

	id, _ := res[0].(string)
	qty, _ := res[1].(int64)
	created, _ := res[2].(string)

	return domain.LineItem{
		ID:        id,
		CartID:    cartID,
		ProductID: productID,
		Qty:       qty,
		CreatedAt: parseMillis(created),
	}, nil
}

func (r *redisRepository) DeleteIfNonPositive(ctx context.Context, cartID, itemID string) (bool, error) {
	return r.delete(ctx, cartID, itemID, true)
}

func (r *redisRepository) Delete(ctx context.Context, cartID, itemID string) (bool, error) {
	return r.delete(ctx, cartID, itemID, false)
}

func (r *redisRepository) delete(ctx context.Context, cartID, itemID string, onlyNonPositive bool) (bool, error) {
	productID, err := r.client.HGet(ctx, idsKey(cartID), itemID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewStoreError("delete", err)
	}

	flag := "0"
	if onlyNonPositive {
		flag = "1"
	}
	keys := []string{lineKey(cartID, productID), linesKey(cartID), idsKey(cartID)}
	n, err := deleteScript.Run(ctx, r.client, keys, itemID, productID, flag).Int64()
	if err != nil {
		return false, domain.NewStoreError("delete", err)
	}
	return n == 1, nil
}

func (r *redisRepository) FindByProduct(ctx context.Context, cartID, productID string) (domain.LineItem, error) {
	fields, err := r.client.HGetAll(ctx, lineKey(cartID, productID)).Result()
	if err != nil {
		return domain.LineItem{}, domain.NewStoreError("find", err)
	}
	if len(fields) == 0 {
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	return lineFromHash(cartID, productID, fields)
}

func (r *redisRepository) List(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	productIDs, err := r.client.ZRange(ctx, linesKey(cartID), 0, -1).Result()
	if err != nil {
		return nil, domain.NewStoreError("list", err)
	}
	if len(productIDs) == 0 {
		return []domain.LineItem{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(productIDs))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, productID := range productIDs {
			cmds[i] = pipe.HGetAll(ctx, lineKey(cartID, productID))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStoreError("list", err)
	}

	items := make([]domain.LineItem, 0, len(productIDs))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// removed between ZRANGE and HGETALL
			continue
		}
		item, err := lineFromHash(cartID, productIDs[i], fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *redisRepository) Clear(ctx context.Context, cartID string) (int64, error) {
	keys := []string{linesKey(cartID), seqKey(cartID), idsKey(cartID)}
	n, err := clearScript.Run(ctx, r.client, keys, lineKey(cartID, "")).Int64()
	if err != nil {
		return 0, domain.NewStoreError("clear", err)
	}
	return n, nil
}

func lineFromHash(cartID, productID string, fields map[string]string) (domain.LineItem, error) {
	qty, err := strconv.ParseInt(fields["qty"], 10, 64)
	if err != nil {
		return domain.LineItem{}, domain.NewStoreError("decode", fmt.Errorf("qty %q: %w", fields["qty"], err))
	}
	return domain.LineItem{
		ID:        fields["id"],
		CartID:    cartID,
		ProductID: productID,
		Qty:       qty,
		CreatedAt: parseMillis(fields["created"]),
	}, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func cartPrefix(cartID string) string {
	return fmt.Sprintf("cart:{%s}:", cartID)
}

func linesKey(cartID string) string { return cartPrefix(cartID) + "lines" }
func seqKey(cartID string) string   { return cartPrefix(cartID) + "seq" }
func idsKey(cartID string) string   { return cartPrefix(cartID) + "ids" }

func lineKey(cartID, productID string) string {
	return cartPrefix(cartID) + "line:" + productID
}
