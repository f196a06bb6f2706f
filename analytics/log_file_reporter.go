package analytics

import (
	"context"
	"os"

	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileReporter appends one JSON line per finished execution.
type LogFileReporter struct {
	logger *zap.Logger
}

func NewLogFileReporter(fileName string) (*LogFileReporter, error) {
	f, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(f), zap.InfoLevel)
	return &LogFileReporter{logger: zap.New(core)}, nil
}

func (r *LogFileReporter) Report(_ context.Context, exec workflow.Execution) error {
	r.logger.Info("workflow finished",
		zap.Int64("id", exec.ID),
		zap.String("runId", exec.RunID),
		zap.String("workflow", exec.WorkflowName),
		zap.String("status", string(exec.Status)),
		zap.Bool("success", exec.Success),
		zap.String("errorMessage", exec.ErrorMessage),
		zap.Time("queueTime", exec.QueueTime),
		zap.Time("startTime", exec.StartTime),
		zap.Time("endTime", exec.EndTime),
	)
	return r.logger.Sync()
}
