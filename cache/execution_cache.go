package cache

import (
	"sort"
	"strconv"
	"time"

	"github.com/jaivgar/workflow-executor/workflow"
	c "github.com/patrickmn/go-cache"
)

const DefaultTTL = time.Hour

// ExecutionCache keeps finished executions readable for a while after they
// leave the queue.
type ExecutionCache struct {
	cache *c.Cache
	ttl   time.Duration
}

func NewExecutionCache(ttl time.Duration) *ExecutionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExecutionCache{
		cache: c.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (ch *ExecutionCache) Save(exec workflow.Execution) {
	ch.cache.Set(key(exec.ID), exec, c.DefaultExpiration)
}

func (ch *ExecutionCache) Get(id int64) (workflow.Execution, bool) {
	v, found := ch.cache.Get(key(id))
	if !found {
		return workflow.Execution{}, false
	}
	exec, ok := v.(workflow.Execution)
	return exec, ok
}

// List returns the cached executions ordered by id.
func (ch *ExecutionCache) List() []workflow.Execution {
	items := ch.cache.Items()
	out := make([]workflow.Execution, 0, len(items))
	for _, item := range items {
		if exec, ok := item.Object.(workflow.Execution); ok {
			out = append(out, exec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (ch *ExecutionCache) Len() int {
	return ch.cache.ItemCount()
}
