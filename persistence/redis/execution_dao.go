package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/util"
	"github.com/jaivgar/workflow-executor/workflow"
	rd "github.com/redis/go-redis/v9"
)

const (
	EXECUTION_KEY string = "EXECUTION"
	FINISHED_KEY  string = "FINISHED"
)

var _ persistence.ExecutionStore = new(redisExecutionDao)

// redisExecutionDao keeps every finished execution in a hash keyed by id and
// pushes the id onto a list so the newest executions can be read back first.
type redisExecutionDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[workflow.Execution]
}

func NewRedisExecutionDao(conf Config) *redisExecutionDao {
	return &redisExecutionDao{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[workflow.Execution](),
	}
}

func (r *redisExecutionDao) Save(ctx context.Context, exec workflow.Execution) error {
	data, err := r.encoderDecoder.Encode(exec)
	if err != nil {
		return err
	}
	id := strconv.FormatInt(exec.ID, 10)
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, r.getNamespaceKey(EXECUTION_KEY), id, string(data))
		pipe.LPush(ctx, r.getNamespaceKey(FINISHED_KEY), id)
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisExecutionDao) Get(ctx context.Context, id int64) (*workflow.Execution, error) {
	data, err := r.redisClient.HGet(ctx, r.getNamespaceKey(EXECUTION_KEY), strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, rd.Nil) {
		return nil, fmt.Errorf("%w: execution %d", persistence.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(data))
}

func (r *redisExecutionDao) History(ctx context.Context, limit int) ([]workflow.Execution, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.redisClient.LRange(ctx, r.getNamespaceKey(FINISHED_KEY), 0, stop).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := r.redisClient.HMGet(ctx, r.getNamespaceKey(EXECUTION_KEY), ids...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	execs := make([]workflow.Execution, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		exec, err := r.encoderDecoder.Decode([]byte(s))
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, nil
}

func (r *redisExecutionDao) Close() error {
	return r.redisClient.Close()
}
