package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

// LayoutEvent is published on NATS each time a node position is saved or the
// positions of a pipeline are reset.
type LayoutEvent struct {
	PipelineID uint    `json:"pipelineId"`
	NodeID     uint    `json:"nodeId,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Reset      bool    `json:"reset,omitempty"`
	// Origin is the instance id of the publisher
	Origin string `json:"origin,omitempty"`
}

// LayoutSink receives the layout events read from NATS
type LayoutSink interface {
	PublishLayout(ev LayoutEvent)
}

// LayoutSubject is tenant.<tenantID>.pipeline.<pipelineID>.layout
func LayoutSubject(tenantID string, pipelineID uint) string {
	return fmt.Sprintf("tenant.%s.pipeline.%d.layout", tenantID, pipelineID)
}

func layoutWildcard(tenantID string) string {
	return fmt.Sprintf("tenant.%s.pipeline.*.layout", tenantID)
}

// parsePipelineIDFromSubject extracts the pipeline id from "tenant.<tid>.pipeline.<id>.layout"
func parsePipelineIDFromSubject(subject string) (uint, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 5 || parts[2] != "pipeline" || parts[4] != "layout" {
		return 0, fmt.Errorf("unexpected subject layout %q", subject)
	}
	id, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid pipeline id %q", parts[3])
	}
	return uint(id), nil
}
