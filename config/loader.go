package config

import (
	"os"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:     "data/advertising.csv",
			WorkingDir: "working_data",
			ModelDir:   "model",
			ModelID:    "model.sav",
		},
		Preprocess: PreprocessConfig{
			Label: "Clicked on Ad",
			Numeric: []string{
				"Daily Time Spent on Site",
				"Age",
				"Area Income",
				"Daily Internet Usage",
				"Male",
			},
			Drop:        []string{"Timestamp", "Clicked on Ad", "Ad Topic Line", "Country", "City"},
			TestSize:    0.3,
			RandomState: 42,
		},
		Model: ModelConfig{
			C:           1.0,
			Kernel:      "rbf",
			Gamma:       "scale",
			Tol:         1e-3,
			MaxIter:     -1,
			RandomState: 42,
		},
		DAG: DAGConfig{
			ID:            "ad_click_training",
			Description:   "Ad click SVC training pipeline",
			Owner:         "adpipe",
			Tags:          []string{"ml", "svc"},
			Schedule:      "@daily",
			MaxActiveRuns: 1,
			Retries:       2,
			RetryDelay:    5 * time.Minute,
		},
		Notify: NotifyConfig{
			To:      []string{"ml-team@example.com"},
			Subject: "adpipe: ad click pipeline completed",
			SMTP:    SMTPConfig{Port: 587, Timeout: 30 * time.Second},
		},
		Trigger: TriggerConfig{
			DAGID:     "ad_click_serving",
			Conf:      map[string]string{"message": "Data from upstream DAG"},
			QueueSize: 16,
		},
		RunStore: RunStoreConfig{
			Driver:       "memory",
			MaxOpenConns: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9102",
		},
	}
}

// Load reads configuration from a YAML file on top of Default.
//
// ${VAR} references are expanded from the environment before parsing. Keys
// absent from the file keep their default value. A trigger.conf given in the
// file replaces the default conf instead of being merged into it. An empty
// path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))
	// yaml.v2 は既存の map にマージするので、conf はファイルの値で置き換える
	defaultConf := cfg.Trigger.Conf
	cfg.Trigger.Conf = nil
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if cfg.Trigger.Conf == nil {
		cfg.Trigger.Conf = defaultConf
	}

	if cfg.Trigger.QueueSize <= 0 {
		cfg.Trigger.QueueSize = 16
	}
	if cfg.DAG.MaxActiveRuns <= 0 {
		cfg.DAG.MaxActiveRuns = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Data.Source == "":
		return errors.NewValidationError("data.source", "must not be empty", c.Data.Source)
	case c.Data.WorkingDir == "" || c.Data.ModelDir == "":
		return errors.NewValidationError("data.working_dir/model_dir", "must not be empty", nil)
	case c.Data.ModelID == "":
		return errors.NewValidationError("data.model_id", "must not be empty", c.Data.ModelID)
	case c.Preprocess.Label == "":
		return errors.NewValidationError("preprocess.label", "must not be empty", c.Preprocess.Label)
	case len(c.Preprocess.Numeric) == 0:
		return errors.NewValidationError("preprocess.numeric", "at least one numeric column is required", nil)
	case !(c.Preprocess.TestSize > 0 && c.Preprocess.TestSize < 1):
		return errors.NewValidationError("preprocess.test_size", "must be in (0, 1)", c.Preprocess.TestSize)
	case !(c.Model.C > 0):
		return errors.NewValidationError("model.c", "must be strictly positive", c.Model.C)
	case c.DAG.Retries < 0:
		return errors.NewValidationError("dag.retries", "must not be negative", c.DAG.Retries)
	case c.DAG.RetryDelay < 0:
		return errors.NewValidationError("dag.retry_delay", "must not be negative", c.DAG.RetryDelay)
	case c.RunStore.Driver != "memory" && c.RunStore.Driver != "postgres":
		return errors.NewValidationError("run_store.driver", "must be memory or postgres", c.RunStore.Driver)
	case c.RunStore.Driver == "postgres" && c.RunStore.URL == "":
		return errors.NewValidationError("run_store.url", "required for the postgres driver", nil)
	case c.Log.Format != "json" && c.Log.Format != "text":
		return errors.NewValidationError("log.format", "must be json or text", c.Log.Format)
	}
	return nil
}
