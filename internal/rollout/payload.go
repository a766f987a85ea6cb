package rollout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// TrafficShare is one service config's slice of the rollout traffic split.
type TrafficShare struct {
	ConfigID string
	Percent  int
}

// Rollout is the decoded view of the control plane's active rollout.
type Rollout struct {
	ID          string
	ServiceName string
	Status      string
	Traffic     []TrafficShare
}

// ConfigEntry pairs a downloaded service-config document with its traffic
// percentage.
type ConfigEntry struct {
	Config  []byte
	Percent int
}

// Assignment is a complete weighted service-configuration set, published to
// the proxy only as a whole. Treat it as immutable once emitted.
type Assignment struct {
	RolloutID string
	Configs   []ConfigEntry
}

// ErrNoRollouts is returned when the control plane reports an empty rollout
// list.
var ErrNoRollouts = errors.New("rollouts response contains no rollouts")

type trafficPercentStrategy struct {
	Percentages map[string]int `json:"percentages"`
}

type rolloutPayload struct {
	RolloutID              string                 `json:"rolloutId"`
	ServiceName            string                 `json:"serviceName"`
	Status                 string                 `json:"status"`
	TrafficPercentStrategy trafficPercentStrategy `json:"trafficPercentStrategy"`
}

type rolloutsResponse struct {
	Rollouts []rolloutPayload `json:"rollouts"`
}

// DecodeRollouts parses a rollouts-list response. Only the first entry is
// consumed; the control plane returns them newest first and the proxy tracks
// the active one. The status field is not re-filtered here, the URL filter
// is advisory and whatever came back first wins.
//
// Traffic shares are ordered by config id so an emission is stable.
func DecodeRollouts(data []byte) (*Rollout, error) {
	var resp rolloutsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse rollouts response: %w", err)
	}

	if len(resp.Rollouts) == 0 {
		return nil, ErrNoRollouts
	}

	first := resp.Rollouts[0]
	traffic := make([]TrafficShare, 0, len(first.TrafficPercentStrategy.Percentages))
	for id, pct := range first.TrafficPercentStrategy.Percentages {
		traffic = append(traffic, TrafficShare{ConfigID: id, Percent: pct})
	}
	sort.Slice(traffic, func(i, j int) bool {
		return traffic[i].ConfigID < traffic[j].ConfigID
	})

	return &Rollout{
		ID:          first.RolloutID,
		ServiceName: first.ServiceName,
		Status:      first.Status,
		Traffic:     traffic,
	}, nil
}
