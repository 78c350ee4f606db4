package session

import (
	"fmt"
	"strings"
)

// State is a scan session state.
type State int

const (
	Idle State = iota
	Previewing
	Analyzing
	ResultReady
)

var stateNames = [...]string{"idle", "previewing", "analyzing", "result_ready"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NonFoodPolicy decides what happens when recognition reports that the
// image does not contain food.
type NonFoodPolicy string

const (
	// PolicyAccept treats the result like any other.
	PolicyAccept NonFoodPolicy = "accept"
	// PolicyWarn shows the result with a warning.
	PolicyWarn NonFoodPolicy = "warn"
	// PolicyReject discards the result and returns to the preview.
	PolicyReject NonFoodPolicy = "reject"
)

// ParsePolicy parses a configured policy name.
func ParsePolicy(s string) (NonFoodPolicy, error) {
	switch p := NonFoodPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAccept, PolicyWarn, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported non_food_policy: %s", s)
	}
}
