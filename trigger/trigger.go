// Package trigger starts downstream DAG runs.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/redis/go-redis/v9"
)

// Request asks for a run of DAGID.
type Request struct {
	DAGID string            `json:"dag_id"`
	Conf  map[string]string `json:"conf"`
	// RunID is the upstream run that issued the request.
	RunID             string    `json:"upstream_run_id"`
	ResetDAGRun       bool      `json:"reset_dag_run"`
	WaitForCompletion bool      `json:"wait_for_completion"`
	RequestedAt       time.Time `json:"requested_at"`
}

// Trigger dispatches requests.
type Trigger interface {
	Trigger(ctx context.Context, req Request) error
}

// QueueKey is the Redis list that receives requests for dagID.
func QueueKey(dagID string) string {
	return fmt.Sprintf("adpipe:dag_runs:%s", dagID)
}

type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string
	Password string
}

// Redis pushes requests as JSON onto a per-DAG list.
type Redis struct {
	rdb    pusher
	closer func() error
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis URL")
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return &Redis{rdb: rdb, closer: rdb.Close}, nil
}

// Trigger implements Trigger.
func (r *Redis) Trigger(ctx context.Context, req Request) error {
	if req.DAGID == "" {
		return errors.NewValidationError("trigger.dag_id", "must not be empty", req.DAGID)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode trigger request")
	}
	if err := r.rdb.LPush(ctx, QueueKey(req.DAGID), payload).Err(); err != nil {
		return errors.Wrapf(err, "lpush %s", QueueKey(req.DAGID))
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Log records requests in the log only.
type Log struct {
	logger log.Logger
}

// NewLog creates a logging trigger.
func NewLog(logger log.Logger) *Log {
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	return &Log{logger: logger}
}

// Trigger implements Trigger.
func (l *Log) Trigger(ctx context.Context, req Request) error {
	l.logger.Info("Downstream DAG triggered",
		log.DAGKey, req.DAGID,
		log.RunIDKey, req.RunID,
		"conf", req.Conf,
	)
	return nil
}
