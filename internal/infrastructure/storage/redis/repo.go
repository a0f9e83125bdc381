package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type Repo struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	seriesStream string
	seriesChan   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, seriesStream, seriesChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "accountability"
	}
	if strings.TrimSpace(seriesStream) == "" {
		seriesStream = prefix + ":series"
	}
	if strings.TrimSpace(seriesChan) == "" {
		seriesChan = prefix + ":series:pub"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyLatest:    prefix + ":latest",
		seriesStream: seriesStream,
		seriesChan:   seriesChan,
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

// InsertSnapshot keeps the latest series per kind and params in a hash,
// appends it to a stream and announces it on a channel.
func (r *Repo) InsertSnapshot(ctx context.Context, snap *model.SeriesSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	// Hash: field = "ytd:" / "historical:fidelity=day span=week bounds=regular" -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, r.field(snap), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.seriesStream,
		Values: map[string]any{
			"id":          snap.ID,
			"kind":        snap.Kind,
			"params":      snap.Params,
			"computed_ms": snap.ComputedAt.UnixMilli(),
			"points":      len(snap.Points),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	msg := fmt.Sprintf(`{"id":%q,"kind":%q,"computed_ms":%d}`, snap.ID, snap.Kind, snap.ComputedAt.UnixMilli())
	return r.rdb.Publish(ctx, r.seriesChan, msg).Err()
}

func (r *Repo) field(snap *model.SeriesSnapshot) string {
	return snap.Kind + ":" + snap.Params
}

var _ port.SeriesRepository = (*Repo)(nil)
