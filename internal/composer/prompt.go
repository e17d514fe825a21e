package composer

import (
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/fitbuddy/internal/profile"
)

// ProfileReader is the read side of profile.Store.
type ProfileReader interface {
	Get(sessionID string) (profile.Profile, bool)
}

// Composer derives the system instruction for a session from BasePrompt and
// the session's profile, if one exists.
type Composer struct {
	profiles ProfileReader
	base     string
}

// New creates a Composer that personalizes BasePrompt from profiles.
func New(profiles ProfileReader) *Composer {
	return &Composer{profiles: profiles, base: BasePrompt}
}

// NewWithBase creates a Composer with a custom base instruction.
func NewWithBase(profiles ProfileReader, base string) *Composer {
	return &Composer{profiles: profiles, base: base}
}

// Compose returns the system instruction for sessionID. Without a profile (or
// with a non-positive height) the base instruction is returned unchanged.
// The output depends only on the stored profile, so repeated calls with the
// same store contents are byte-identical.
func (c *Composer) Compose(sessionID string) string {
	p, ok := c.profiles.Get(sessionID)
	if !ok || p.HeightCM <= 0 {
		return c.base
	}
	return c.base + profileBlock(p)
}

// goalGuidance is the fixed advice policy injected for each goal.
var goalGuidance = map[profile.Goal]string{
	profile.GoalWeightLoss:     "Weight loss: suggest portion control, more protein, less fried food, and a gentle calorie deficit.",
	profile.GoalWeightGain:     "Weight gain: suggest calorie-dense nutritious foods, regular meals, and healthy snacks between meals.",
	profile.GoalMaintenance:    "Maintenance: focus on balanced meals and consistency rather than restriction.",
	profile.GoalMuscleBuilding: "Muscle building: emphasize protein-rich foods like paneer, dal, eggs, chicken, and post-workout meals.",
}

func profileBlock(p profile.Profile) string {
	goal := profile.ParseGoal(string(p.Goal))

	var sb strings.Builder
	sb.WriteString("\n\nUSER PROFILE (use this to personalize advice):\n")
	sb.WriteString("- Height: " + formatNumber(p.HeightCM) + " cm\n")
	sb.WriteString("- Weight: " + formatNumber(p.WeightKG) + " kg\n")
	sb.WriteString("- BMI: " + FormatBMI(p.BMI()) + "\n")
	sb.WriteString("- Fitness Goal: " + string(goal) + "\n")
	sb.WriteString("\nWhen the user asks for fitness advice or what they should do/eat, follow this guidance for their goal:\n")
	sb.WriteString("- " + goalGuidance[goal] + "\n")
	sb.WriteString("\nAlways be encouraging and give practical Indian food suggestions based on their goal!")
	return sb.String()
}

// FormatBMI rounds half away from zero to one decimal place.
func FormatBMI(bmi float64) string {
	return strconv.FormatFloat(math.Round(bmi*10)/10, 'f', 1, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
