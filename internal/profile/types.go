package profile

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidProfile is returned when height or weight is not a positive number.
var ErrInvalidProfile = errors.New("invalid profile")

// Goal is the user's fitness goal.
type Goal string

const (
	GoalWeightLoss     Goal = "weight_loss"
	GoalWeightGain     Goal = "weight_gain"
	GoalMaintenance    Goal = "maintenance"
	GoalMuscleBuilding Goal = "muscle_building"
)

// Goals lists every recognized goal in display order.
var Goals = []Goal{GoalWeightLoss, GoalWeightGain, GoalMaintenance, GoalMuscleBuilding}

// ParseGoal maps s onto a known Goal. Empty or unrecognized values fall back
// to GoalMaintenance.
func ParseGoal(s string) Goal {
	g := Goal(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GoalWeightLoss, GoalWeightGain, GoalMaintenance, GoalMuscleBuilding:
		return g
	default:
		return GoalMaintenance
	}
}

// Profile holds the physical attributes and goal used to personalize the
// system instruction for one session.
type Profile struct {
	HeightCM  float64   `json:"height"`
	WeightKG  float64   `json:"weight"`
	Goal      Goal      `json:"goal"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BMI returns weight / (height in metres)². Zero when height is not positive.
func (p Profile) BMI() float64 {
	if p.HeightCM <= 0 {
		return 0
	}
	m := p.HeightCM / 100
	return p.WeightKG / (m * m)
}

// Validate reports ErrInvalidProfile unless height and weight are positive,
// finite numbers.
func (p Profile) Validate() error {
	if !positive(p.HeightCM) {
		return fmt.Errorf("%w: height must be a positive number, got %v", ErrInvalidProfile, p.HeightCM)
	}
	if !positive(p.WeightKG) {
		return fmt.Errorf("%w: weight must be a positive number, got %v", ErrInvalidProfile, p.WeightKG)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
