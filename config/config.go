// Package config loads the pipeline configuration from YAML.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Model      ModelConfig      `yaml:"model"`
	DAG        DAGConfig        `yaml:"dag"`
	Notify     NotifyConfig     `yaml:"notify"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	RunStore   RunStoreConfig   `yaml:"run_store"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DataConfig locates the input and the artifact directories.
type DataConfig struct {
	Source     string `yaml:"source"`
	WorkingDir string `yaml:"working_dir"`
	ModelDir   string `yaml:"model_dir"`
	ModelID    string `yaml:"model_id"`
	// ReportPath enables the decision-function histogram when set.
	ReportPath string `yaml:"report_path"`
}

// PreprocessConfig describes the schema and the split.
type PreprocessConfig struct {
	Label       string   `yaml:"label"`
	Numeric     []string `yaml:"numeric"`
	Drop        []string `yaml:"drop"`
	TestSize    float64  `yaml:"test_size"`
	RandomState int64    `yaml:"random_state"`
}

// ModelConfig holds the SVC hyperparameters.
type ModelConfig struct {
	C           float64 `yaml:"c"`
	Kernel      string  `yaml:"kernel"`
	Gamma       string  `yaml:"gamma"`
	Tol         float64 `yaml:"tol"`
	MaxIter     int     `yaml:"max_iter"`
	RandomState int64   `yaml:"random_state"`
}

// DAGConfig holds the workflow metadata and the retry policy.
type DAGConfig struct {
	ID            string        `yaml:"id"`
	Description   string        `yaml:"description"`
	Owner         string        `yaml:"owner"`
	Tags          []string      `yaml:"tags"`
	Schedule      string        `yaml:"schedule"`
	Catchup       bool          `yaml:"catchup"`
	MaxActiveRuns int           `yaml:"max_active_runs"`
	Retries       int           `yaml:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// NotifyConfig configures the completion email. An empty SMTP host logs the
// message instead of sending it.
type NotifyConfig struct {
	To      []string   `yaml:"to"`
	Subject string     `yaml:"subject"`
	SMTP    SMTPConfig `yaml:"smtp"`
}

// SMTPConfig is the mail relay.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TriggerConfig configures the downstream DAG trigger. An empty Redis URL
// logs the request instead of enqueuing it.
type TriggerConfig struct {
	DAGID     string            `yaml:"dag_id"`
	Conf      map[string]string `yaml:"conf"`
	RedisURL  string            `yaml:"redis_url"`
	Password  string            `yaml:"redis_password"`
	QueueSize int               `yaml:"queue_size"`
}

// RunStoreConfig selects where run history is kept.
type RunStoreConfig struct {
	Driver       string `yaml:"driver"` // memory | postgres
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// MetricsConfig exposes /metrics during `adpipe schedule`.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}
