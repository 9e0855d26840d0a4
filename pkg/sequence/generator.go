package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator hands out sequential invoice numbers. Numbers restart at 1 for
// every year so that "<prefix>-<year>-<seq>" stays short.
type Generator interface {
	NextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error) {
	key := fmt.Sprintf("seq:invoice:%d", year)
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq), nil
}
