package workflow

import (
	"fmt"
	"strings"
)

// WStatus is the lifecycle of a workflow. Templates stay IDLE; queued
// instances wait IDLE, run ACTIVE and end DONE. SCHEDULE is part of the
// vocabulary shared with the workflow manager and is accepted on the wire.
type WStatus string

const (
	IDLE     WStatus = "IDLE"
	SCHEDULE WStatus = "SCHEDULE"
	ACTIVE   WStatus = "ACTIVE"
	DONE     WStatus = "DONE"
)

func ParseStatus(s string) (WStatus, error) {
	switch st := WStatus(strings.ToUpper(s)); st {
	case IDLE, SCHEDULE, ACTIVE, DONE:
		return st, nil
	}
	return "", fmt.Errorf("invalid workflow status %q", s)
}
