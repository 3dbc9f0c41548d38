package workflow

import (
	"fmt"
	"strings"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageScan     Stage = "scan"
	StageRequest  Stage = "request"
	StageIngest   Stage = "ingest"
	StageRoute    Stage = "route"
	StageOrganize Stage = "organize"
)

var stageOrder = []Stage{StageScan, StageRequest, StageIngest, StageRoute, StageOrganize}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage resolves a stage name case-insensitively.
func ParseStage(value string) (Stage, error) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", value)
}
