package types

import (
	"time"
)

// Mode constants for watcher operation
const (
	ModeLocal  = "local"  // No Redis, in-memory snapshots
	ModeRemote = "remote" // Redis-backed snapshots, locks and events
)

// AppConfig is the root configuration for runwatch
type AppConfig struct {
	Mode       string `key:"mode" json:"mode"` // "local" or "remote"
	DebugMode  bool   `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs"`

	Watch           WatchConfig    `key:"watch" json:"watch"`
	Layout          LayoutConfig   `key:"layout" json:"layout"`
	Database        DatabaseConfig `key:"database" json:"database"`
	HTTP            HTTPConfig     `key:"http" json:"http"`
	Sink            SinkConfig     `key:"sink" json:"sink"`
	ShutdownTimeout time.Duration  `key:"shutdownTimeout" json:"shutdown_timeout"`
}

// IsLocalMode returns true if running in local mode (no Redis)
func (c *AppConfig) IsLocalMode() bool {
	return c.Mode != ModeRemote
}

// ----------------------------------------------------------------------------
// Watch Configuration
// ----------------------------------------------------------------------------

type WatchConfig struct {
	// Parent directories scanned for run directories on every tick
	Roots []string `key:"roots" json:"roots"`
	// Individual run directories tracked regardless of discovery
	Runs        []string      `key:"runs" json:"runs"`
	Interval    time.Duration `key:"interval" json:"interval"`
	Workers     int           `key:"workers" json:"workers"`
	RetireAfter time.Duration `key:"retireAfter" json:"retire_after"` // terminal runs stop being polled after this
	RetiredTTL  time.Duration `key:"retiredTTL" json:"retired_ttl"`
	MaxRetired  int           `key:"maxRetired" json:"max_retired"`
}

// LayoutConfig names the files an instrument writes into a run directory
type LayoutConfig struct {
	StartedMarkers         []string `key:"startedMarkers" json:"started_markers"`
	RTACompleteMarker      string   `key:"rtaCompleteMarker" json:"rta_complete_marker"`
	SequenceCompleteMarker string   `key:"sequenceCompleteMarker" json:"sequence_complete_marker"`
	CopyCompleteMarker     string   `key:"copyCompleteMarker" json:"copy_complete_marker"`
	CompletionFile         string   `key:"completionFile" json:"completion_file"`
	SampleSheet            string   `key:"sampleSheet" json:"sample_sheet"`
	BaseCallsDir           string   `key:"baseCallsDir" json:"base_calls_dir"`
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis RedisConfig `key:"redis" json:"redis"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRedirects       int           `key:"maxRedirects" json:"max_redirects"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
	RouteByLatency     bool          `key:"routeByLatency" json:"route_by_latency"`
}

// ----------------------------------------------------------------------------
// HTTP Configuration
// ----------------------------------------------------------------------------

type HTTPConfig struct {
	Enabled          bool   `key:"enabled" json:"enabled"`
	Host             string `key:"host" json:"host"`
	Port             int    `key:"port" json:"port"`
	AuthToken        string `key:"authToken" json:"auth_token"`
	EnablePrettyLogs bool   `key:"enablePrettyLogs" json:"enable_pretty_logs"`
}

// ----------------------------------------------------------------------------
// Sink Configuration
// ----------------------------------------------------------------------------

type SinkConfig struct {
	S3 S3Config `key:"s3" json:"s3"`
}

type S3Config struct {
	Bucket         string `key:"bucket" json:"bucket"`
	Prefix         string `key:"prefix" json:"prefix"`
	Region         string `key:"region" json:"region"`
	Endpoint       string `key:"endpoint" json:"endpoint"`
	AccessKey      string `key:"accessKey" json:"access_key"`
	SecretKey      string `key:"secretKey" json:"secret_key"`
	ForcePathStyle bool   `key:"forcePathStyle" json:"force_path_style"`
}

// IsConfigured returns true when snapshots should be uploaded
func (c S3Config) IsConfigured() bool {
	return c.Bucket != ""
}
