package detection

import (
	"hash/maphash"
	"time"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// hashSeed is the global seed for maphash operations.
// Initialized once at package load for consistent hashing across the process lifetime.
var hashSeed = maphash.MakeSeed()

// ShardedEngine partitions clients across independently locked engines by a
// hash of the client identifier. Each shard holds max(1, MaxClients/shards)
// clients, so the total never exceeds MaxClients (except when there are more
// shards than clients).
//
// Eviction is per shard: the evicted client is the least recently used one
// of its shard, not necessarily of the whole process.
type ShardedEngine struct {
	shards []*DetectionEngine
}

// NewShardedEngine creates shardCount engines sharing one configuration.
//
// Parameters:
//   - cfg: Engine configuration; MaxClients is the total across shards
//   - shardCount: Number of partitions (1 if <= 0)
func NewShardedEngine(cfg EngineConfig, shardCount int) (*ShardedEngine, error) {
	if shardCount <= 0 {
		shardCount = 1
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = domain.DefaultMaxClients
	}
	perShard := cfg.MaxClients / shardCount
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]*DetectionEngine, shardCount)
	for i := range shards {
		shardCfg := cfg
		shardCfg.MaxClients = perShard
		engine, err := NewDetectionEngine(shardCfg)
		if err != nil {
			return nil, err
		}
		shards[i] = engine
	}
	return &ShardedEngine{shards: shards}, nil
}

// secureHash computes a consistent hash for client sharding using maphash.
func secureHash(s string) uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	h.WriteString(s)
	return h.Sum64()
}

func (s *ShardedEngine) shard(clientID string) *DetectionEngine {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	return s.shards[secureHash(clientID)%uint64(len(s.shards))]
}

func (s *ShardedEngine) RecordAndClassify(clientID string) domain.ActorStatus {
	return s.shard(clientID).RecordAndClassify(clientID)
}

func (s *ShardedEngine) RecordAndClassifyAt(clientID string, at time.Time) domain.ActorStatus {
	return s.shard(clientID).RecordAndClassifyAt(clientID, at)
}

func (s *ShardedEngine) TrackedClients() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.TrackedClients()
	}
	return total
}

// Capacity returns the combined client cap of all shards.
func (s *ShardedEngine) Capacity() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Capacity()
	}
	return total
}

func (s *ShardedEngine) Evictions() uint64 {
	var total uint64
	for _, shard := range s.shards {
		total += shard.Evictions()
	}
	return total
}

// TopClients merges the per-shard views. Shards are read one at a time, so
// the result is not a single consistent snapshot.
func (s *ShardedEngine) TopClients(n int) []domain.ClientSummary {
	var all []domain.ClientSummary
	for _, shard := range s.shards {
		all = append(all, shard.TopClients(n)...)
	}
	return topSummaries(all, n)
}

func (s *ShardedEngine) ShardCount() int {
	return len(s.shards)
}
