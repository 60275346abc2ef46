// Package redisstore keeps serialized inventory units and loyalty customers
// in Redis. Status changes run as Lua scripts, so a compare-and-set on one
// unit and a batch commit on several are each atomic on the server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/inventory"
	"github.com/roach88/till/internal/pricing"
)

const defaultPrefix = "till"

var casScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if current == ARGV[1] then
	redis.call('HSET', KEYS[1], 'status', ARGV[2])
	redis.call('HINCRBY', KEYS[1], 'version', 1)
	return 1
end
return 0
`)

// batchScript returns the 1-based positions of keys not in the expected
// status. Nothing is written unless that list is empty.
var batchScript = redis.NewScript(`
local conflicts = {}
for i, key in ipairs(KEYS) do
	if redis.call('HGET', key, 'status') ~= ARGV[1] then
		table.insert(conflicts, i)
	end
end
if #conflicts > 0 then
	return conflicts
end
for _, key in ipairs(KEYS) do
	redis.call('HSET', key, 'status', ARGV[2])
	redis.call('HINCRBY', key, 'version', 1)
end
return {}
`)

// Store is a Redis-backed inventory.Repository and customer.Directory.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New wraps client. Keys are namespaced under prefix ("till" when empty).
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open connects to addr, either "host:port" or a redis:// URL, and pings it.
func Open(ctx context.Context, addr, prefix string) (*Store, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client, prefix), nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func idKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (s *Store) unitKey(id string) string {
	return s.prefix + ":unit:" + idKey(id)
}

func (s *Store) lineKey(productID, variantID string) string {
	return s.prefix + ":line:" + productID + "|" + variantID
}

func (s *Store) allKey() string {
	return s.prefix + ":units"
}

func (s *Store) customerKey(id string) string {
	return s.prefix + ":customer:" + strings.TrimSpace(id)
}

// PutUnits inserts or replaces units. A unit moved to another product variant
// is removed from its old line index.
func (s *Store) PutUnits(ctx context.Context, units []inventory.Unit) error {
	for _, u := range units {
		if idKey(u.ID) == "" || u.ProductID == "" {
			return fmt.Errorf("put units: unit %q needs an id and a product id", u.ID)
		}
		if !u.Status.Valid() {
			return fmt.Errorf("put units: unit %s has unknown status %q", u.ID, u.Status)
		}
	}

	old := make([]*redis.SliceCmd, len(units))
	if _, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, u := range units {
			old[i] = p.HMGet(ctx, s.unitKey(u.ID), "product_id", "variant_id")
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("put units: read previous: %w", err)
	}

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, u := range units {
			key := s.unitKey(u.ID)
			if prev := old[i].Val(); len(prev) == 2 && prev[0] != nil {
				pp, _ := prev[0].(string)
				pv, _ := prev[1].(string)
				if pp != u.ProductID || pv != u.VariantID {
					p.SRem(ctx, s.lineKey(pp, pv), key)
				}
			}
			kind := u.Kind
			if kind == "" {
				kind = inventory.KindSerial
			}
			p.HSet(ctx, key,
				"id", strings.TrimSpace(u.ID),
				"kind", string(kind),
				"product_id", u.ProductID,
				"variant_id", u.VariantID,
				"status", string(u.Status),
			)
			p.HIncrBy(ctx, key, "version", 1)
			p.SAdd(ctx, s.lineKey(u.ProductID, u.VariantID), key)
			p.SAdd(ctx, s.allKey(), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put units: %w", err)
	}
	return nil
}

func (s *Store) readUnits(ctx context.Context, keys []string) ([]inventory.Unit, error) {
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	if _, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, k)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}

	units := make([]inventory.Unit, 0, len(keys))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		units = append(units, inventory.Unit{
			ID:        h["id"],
			Kind:      inventory.IdentifierKind(h["kind"]),
			ProductID: h["product_id"],
			VariantID: h["variant_id"],
			Status:    inventory.UnitStatus(h["status"]),
		})
	}
	sort.Slice(units, func(i, j int) bool { return idKey(units[i].ID) < idKey(units[j].ID) })
	return units, nil
}

// Unit returns one unit by id.
func (s *Store) Unit(ctx context.Context, id string) (inventory.Unit, error) {
	units, err := s.readUnits(ctx, []string{s.unitKey(id)})
	if err != nil {
		return inventory.Unit{}, err
	}
	if len(units) == 0 {
		return inventory.Unit{}, fmt.Errorf("%w: %s", inventory.ErrUnitNotFound, id)
	}
	return units[0], nil
}

// ListUnits returns units matching f ordered by id.
func (s *Store) ListUnits(ctx context.Context, f inventory.ListFilter) ([]inventory.Unit, error) {
	src := s.allKey()
	if f.ProductID != "" && f.VariantID != "" {
		src = s.lineKey(f.ProductID, f.VariantID)
	}
	keys, err := s.client.SMembers(ctx, src).Result()
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	units, err := s.readUnits(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := units[:0]
	for _, u := range units {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// QueryAvailableUnits returns the available units of one product variant.
func (s *Store) QueryAvailableUnits(ctx context.Context, productID, variantID string) ([]inventory.Unit, error) {
	return s.ListUnits(ctx, inventory.ListFilter{
		ProductID: productID,
		VariantID: variantID,
		Status:    inventory.StatusAvailable,
	})
}

// CommitReservation is an atomic compare-and-set on the unit status.
func (s *Store) CommitReservation(ctx context.Context, unitID string, expected, target inventory.UnitStatus) (bool, error) {
	n, err := casScript.Run(ctx, s.client, []string{s.unitKey(unitID)}, string(expected), string(target)).Int()
	if err != nil {
		return false, fmt.Errorf("commit unit %s: %w", unitID, err)
	}
	return n == 1, nil
}

// CommitBatch moves all units or none in a single script run.
func (s *Store) CommitBatch(ctx context.Context, unitIDs []string, expected, target inventory.UnitStatus) ([]string, error) {
	keys := make([]string, len(unitIDs))
	for i, id := range unitIDs {
		keys[i] = s.unitKey(id)
	}
	idx, err := batchScript.Run(ctx, s.client, keys, string(expected), string(target)).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	var conflicts []string
	for _, i := range idx {
		if i >= 1 && int(i) <= len(unitIDs) {
			conflicts = append(conflicts, unitIDs[i-1])
		}
	}
	return conflicts, nil
}

// PutCustomer stores a customer's loyalty record.
func (s *Store) PutCustomer(ctx context.Context, c pricing.Customer) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("put customer: id is required")
	}
	err := s.client.HSet(ctx, s.customerKey(c.ID),
		"id", strings.TrimSpace(c.ID),
		"points_balance", strconv.FormatInt(c.PointsBalance, 10),
		"tier", c.Tier,
	).Err()
	if err != nil {
		return fmt.Errorf("put customer %s: %w", c.ID, err)
	}
	return nil
}

// Lookup implements customer.Directory.
func (s *Store) Lookup(ctx context.Context, id string) (*pricing.Customer, error) {
	h, err := s.client.HGetAll(ctx, s.customerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", id, err)
	}
	if len(h) == 0 {
		return nil, customer.ErrNotFound
	}
	points, err := strconv.ParseInt(h["points_balance"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("customer %s: bad points balance %q", id, h["points_balance"])
	}
	return &pricing.Customer{ID: h["id"], PointsBalance: points, Tier: h["tier"]}, nil
}

var (
	_ inventory.Repository     = (*Store)(nil)
	_ inventory.BatchCommitter = (*Store)(nil)
	_ customer.Directory       = (*Store)(nil)
)
