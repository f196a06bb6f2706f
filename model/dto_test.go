package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jaivgar/workflow-executor/workflow"
	"github.com/stretchr/testify/require"
)

func TestQueuedWorkflowDTOOmitsUnsetTimes(t *testing.T) {
	queued := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dto := NewQueuedWorkflowDTO(workflow.Execution{ID: 1, WorkflowName: "echo", Status: workflow.IDLE, QueueTime: queued})
	data, err := json.Marshal(dto)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"workflowName":"echo","workflowStatus":"IDLE","queueTime":"2024-01-02T03:04:05Z","startTime":null,"endTime":null}`, string(data))
}

func TestFinishWorkflowDTO(t *testing.T) {
	now := time.Now().UTC()
	dto := NewFinishWorkflowDTO(workflow.Execution{
		ID: 2, WorkflowName: "milling", Status: workflow.DONE, ErrorMessage: "boom",
		QueueTime: now, StartTime: now, EndTime: now,
	})
	require.False(t, dto.Success)
	require.Equal(t, "boom", dto.ErrorMessage)
	require.NotNil(t, dto.EndTime)
}
