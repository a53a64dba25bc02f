// Package vectorstore is the vector backend boundary: a RediSearch
// index of corpus chunks accessed via rueidis.
package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/caremind-health/medfaq/internal/domain"
)

const keyPrefix = "medfaq:chunk:"

// Neighbor is a single KNN hit with the backend's native similarity score.
type Neighbor struct {
	Text    string
	Ordinal int
	Score   float64
}

// Config holds connection parameters for the vector backend.
type Config struct {
	Addrs     []string
	Password  string
	IndexName string
	Timeout   time.Duration
}

// Store implements the vector index boundary against Redis 8+.
type Store struct {
	client    rueidis.Client
	indexName string
	timeout   time.Duration
}

// New creates a vector store client.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Store{client: client, indexName: cfg.IndexName, timeout: timeout}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w: %w", err, domain.ErrUpstream)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// EnsureIndex creates the FT index over chunk hashes if it does not
// already exist.
func (s *Store) EnsureIndex(ctx context.Context, dimensions int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(
		s.indexName,
		"ON", "HASH",
		"PREFIX", "1", keyPrefix,
		"SCHEMA",
		"text", "TEXT",
		"ordinal", "NUMERIC",
		"vector", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimensions),
		"DISTANCE_METRIC", "COSINE",
	).Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w: %w", err, domain.ErrUpstream)
	}
	return nil
}

// Upsert writes chunks with their vectors as hashes. chunks and vectors
// must be parallel slices.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmds := make(rueidis.Commands, 0, len(chunks))
	for i, c := range chunks {
		cmds = append(cmds, s.client.B().Hset().Key(keyPrefix+c.ID).FieldValue().
			FieldValue("text", c.Text).
			FieldValue("source", c.SourceRef).
			FieldValue("ordinal", strconv.Itoa(c.Ordinal)).
			FieldValue("vector", vectorToBytes(vectors[i])).
			Build())
	}

	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("upsert chunk: %w: %w", err, domain.ErrUpstream)
		}
	}
	return nil
}

// QueryTopK runs a KNN search over the chunk index and returns the k
// nearest neighbors with cosine similarity scores.
func (s *Store) QueryTopK(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(
		s.indexName, queryStr,
		"RETURN", "3", "text", "ordinal", "__vector_score",
		"SORTBY", "__vector_score",
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	).Build()

	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", err, domain.ErrUpstream)
	}

	return parseKNNResult(raw)
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) ([]Neighbor, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w: %w", err, domain.ErrUpstream)
	}
	if total == 0 {
		return nil, nil
	}

	neighbors := make([]Neighbor, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		var n Neighbor
		m := parseFieldPairs(fields)
		n.Text = m["text"]
		if ord, err := strconv.Atoi(m["ordinal"]); err == nil {
			n.Ordinal = ord
		}
		if dist, err := strconv.ParseFloat(m["__vector_score"], 64); err == nil {
			n.Score = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
		}
		neighbors = append(neighbors, n)
	}

	return neighbors, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
