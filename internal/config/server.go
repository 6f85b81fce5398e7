package config

import (
	"fmt"
	"time"
)

// Server is the KissVDB configuration surface (spec §6). Every field has a
// default applied by Default(); implementers may rename the on-disk keys
// via yaml/json struct tags without changing these Go identifiers.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address" json:"bind_address"`
	Port        int    `yaml:"port" json:"port"`

	// DataDir is the durability root. Empty means purely in-memory, no
	// durability (no WAL, no snapshots, no per-collection files).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Snapshot / WAL scheduling
	SnapshotIntervalSeconds int   `yaml:"snapshot_interval_seconds" json:"snapshot_interval_seconds"`
	EventBufferSize         int   `yaml:"event_buffer_size" json:"event_buffer_size"`
	LiveBroadcastCapacity   int   `yaml:"live_broadcast_capacity" json:"live_broadcast_capacity"`
	WALSegmentMaxBytes      int64 `yaml:"wal_segment_max_bytes" json:"wal_segment_max_bytes"`
	WALRetentionSegments    int   `yaml:"wal_retention_segments" json:"wal_retention_segments"`

	// Request / size limits
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	MaxJSONBytes      int64         `yaml:"max_json_bytes" json:"max_json_bytes"`
	MaxKeyLength      int           `yaml:"max_key_length" json:"max_key_length"`
	MaxCollectionName int           `yaml:"max_collection_name" json:"max_collection_name"`
	MaxIDLength       int           `yaml:"max_id_length" json:"max_id_length"`
	MaxVectorDim      int           `yaml:"max_vector_dim" json:"max_vector_dim"`
	MaxK              int           `yaml:"max_k" json:"max_k"`
	MaxStateBatch     int           `yaml:"max_state_batch" json:"max_state_batch"`
	MaxVectorBatch    int           `yaml:"max_vector_batch" json:"max_vector_batch"`

	// Compaction
	CompactionTombstoneRatio float64 `yaml:"compaction_tombstone_ratio" json:"compaction_tombstone_ratio"`

	// Optional domain-stack integrations, all off unless configured.
	NATS    NATSConfig    `yaml:"nats" json:"nats"`
	Audit   AuditConfig   `yaml:"audit" json:"audit"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Auth    AuthConfig    `yaml:"auth" json:"auth"`
}

// NATSConfig controls the optional embedded NATS fan-out bridge.
type NATSConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// AuditConfig controls the optional SQLite audit mirror.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" json:"exporter"` // stdout | jaeger | zipkin
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// AuthConfig controls the optional auth middleware. Exactly one of the
// two schemes applies: if APIKeyHash is set, requests authenticate with
// a static bearer API key checked against this bcrypt hash; otherwise
// bearer tokens are validated as HS256 JWTs against HMACSecret.
type AuthConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	HMACSecret string `yaml:"hmac_secret" json:"hmac_secret"`
	APIKeyHash string `yaml:"api_key_hash" json:"api_key_hash"`
}

// Default returns KissVDB's conservative default configuration.
func Default() *Server {
	return &Server{
		BindAddress:              "127.0.0.1",
		Port:                     8085,
		DataDir:                  "",
		SnapshotIntervalSeconds:  300,
		EventBufferSize:          4096,
		LiveBroadcastCapacity:    4096,
		WALSegmentMaxBytes:       64 << 20,
		WALRetentionSegments:     16,
		RequestTimeout:           30 * time.Second,
		MaxBodyBytes:             4 << 20,
		MaxJSONBytes:             4 << 20,
		MaxKeyLength:             512,
		MaxCollectionName:        128,
		MaxIDLength:              256,
		MaxVectorDim:             4096,
		MaxK:                     1000,
		MaxStateBatch:            256,
		MaxVectorBatch:           256,
		CompactionTombstoneRatio: 0.2,
		NATS:                     NATSConfig{SubjectPrefix: "kissvdb.events"},
	}
}

// DefaultValidator checks the invariants Default() upholds: port in
// 1..65535, wal_segment_max_bytes, live_broadcast_capacity and
// max_vector_dim positive, compaction ratio in (0,1].
func DefaultValidator() ValidatorFunc {
	return func(c interface{}) error {
		s, ok := c.(*Server)
		if !ok {
			return fmt.Errorf("config: expected *Server, got %T", c)
		}
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("config: port %d out of range", s.Port)
		}
		if s.WALSegmentMaxBytes <= 0 {
			return fmt.Errorf("config: wal_segment_max_bytes must be positive")
		}
		if s.LiveBroadcastCapacity <= 0 {
			return fmt.Errorf("config: live_broadcast_capacity must be positive")
		}
		if s.CompactionTombstoneRatio <= 0 || s.CompactionTombstoneRatio > 1 {
			return fmt.Errorf("config: compaction_tombstone_ratio must be in (0,1]")
		}
		if s.MaxVectorDim <= 0 {
			return fmt.Errorf("config: max_vector_dim must be positive")
		}
		return nil
	}
}
