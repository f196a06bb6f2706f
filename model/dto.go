package model

import (
	"time"

	"github.com/jaivgar/workflow-executor/workflow"
)

// Wire formats shared with the workflow manager.

type WorkflowDTO struct {
	WorkflowName   string              `json:"workflowName"`
	WorkflowConfig map[string][]string `json:"workflowConfig"`
}

// StartWorkflowDTO is the body of an execution request. Config values may be
// of any JSON type.
type StartWorkflowDTO struct {
	WorkflowName   string         `json:"workflowName"`
	WorkflowConfig map[string]any `json:"workflowConfig"`
}

type QueuedWorkflowDTO struct {
	ID             int64            `json:"id"`
	WorkflowName   string           `json:"workflowName"`
	WorkflowStatus workflow.WStatus `json:"workflowStatus"`
	QueueTime      time.Time        `json:"queueTime"`
	StartTime      *time.Time       `json:"startTime"`
	EndTime        *time.Time       `json:"endTime"`
}

type FinishWorkflowDTO struct {
	ID             int64            `json:"id"`
	RunID          string           `json:"runId,omitempty"`
	WorkflowName   string           `json:"workflowName"`
	WorkflowStatus workflow.WStatus `json:"workflowStatus"`
	Success        bool             `json:"success"`
	ErrorMessage   string           `json:"errorMessage"`
	QueueTime      time.Time        `json:"queueTime"`
	StartTime      *time.Time       `json:"startTime"`
	EndTime        *time.Time       `json:"endTime"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func NewWorkflowDTO(w *workflow.Workflow) WorkflowDTO {
	return WorkflowDTO{
		WorkflowName:   w.Name,
		WorkflowConfig: w.Config.Clone(),
	}
}

func NewQueuedWorkflowDTO(e workflow.Execution) QueuedWorkflowDTO {
	return QueuedWorkflowDTO{
		ID:             e.ID,
		WorkflowName:   e.WorkflowName,
		WorkflowStatus: e.Status,
		QueueTime:      e.QueueTime,
		StartTime:      timePtr(e.StartTime),
		EndTime:        timePtr(e.EndTime),
	}
}

func NewFinishWorkflowDTO(e workflow.Execution) FinishWorkflowDTO {
	return FinishWorkflowDTO{
		ID:             e.ID,
		RunID:          e.RunID,
		WorkflowName:   e.WorkflowName,
		WorkflowStatus: e.Status,
		Success:        e.Success,
		ErrorMessage:   e.ErrorMessage,
		QueueTime:      e.QueueTime,
		StartTime:      timePtr(e.StartTime),
		EndTime:        timePtr(e.EndTime),
	}
}
