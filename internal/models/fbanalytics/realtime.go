package fbanalytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const realtimeTTL = 31 * 24 * time.Hour

// RealtimeCounter keeps today's event counters in redis so the dashboard
// can show them without scanning the event table. A nil counter records
// nothing.
type RealtimeCounter struct {
	client *redis.Client
}

func NewRealtimeCounter(client *redis.Client) *RealtimeCounter {
	if client == nil {
		return nil
	}
	return &RealtimeCounter{client: client}
}

func scopes(funnelID *uint) []string {
	if funnelID == nil {
		return []string{"all"}
	}
	return []string{"all", strconv.FormatUint(uint64(*funnelID), 10)}
}

func eventsKey(scope string, day time.Time) string {
	return fmt.Sprintf("funnelboard:daily:%s:%s", scope, day.UTC().Format(dayLayout))
}

func sessionsKey(scope string, day time.Time) string {
	return fmt.Sprintf("funnelboard:sessions:%s:%s", scope, day.UTC().Format(dayLayout))
}

// Record counts one event. Failures are logged, tracking never fails on
// the counters.
func (r *RealtimeCounter) Record(ctx context.Context, funnelID *uint, sessionID, eventType string, at time.Time) {
	if r == nil {
		return
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, scope := range scopes(funnelID) {
			ek, sk := eventsKey(scope, at), sessionsKey(scope, at)
			pipe.HIncrBy(ctx, ek, eventType, 1)
			pipe.Expire(ctx, ek, realtimeTTL)
			pipe.SAdd(ctx, sk, sessionID)
			pipe.Expire(ctx, sk, realtimeTTL)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("realtime counters not updated")
	}
}

// Snapshot reads the counters of the day of at. It returns nil when redis
// cannot be read.
func (r *RealtimeCounter) Snapshot(ctx context.Context, funnelID *uint, at time.Time) *Realtime {
	if r == nil {
		return nil
	}
	scope := "all"
	if funnelID != nil {
		scope = strconv.FormatUint(uint64(*funnelID), 10)
	}

	raw, err := r.client.HGetAll(ctx, eventsKey(scope, at)).Result()
	if err != nil && err != redis.Nil {
		log.Warn().Err(err).Msg("realtime counters unavailable")
		return nil
	}
	sessions, err := r.client.SCard(ctx, sessionsKey(scope, at)).Result()
	if err != nil && err != redis.Nil {
		log.Warn().Err(err).Msg("realtime sessions unavailable")
		return nil
	}

	out := &Realtime{Events: make(map[string]int64, len(raw)), UniqueSessions: sessions}
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out.Events[k] = n
	}
	return out
}
