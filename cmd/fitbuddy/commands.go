package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/fitbuddy/internal/config"
	"github.com/kalambet/fitbuddy/internal/journal"
	"github.com/kalambet/fitbuddy/internal/profile"
)

func sessionFlag(cmd *cobra.Command) string {
	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		return "default"
	}
	return id
}

// --- chat ---

type chatReply struct {
	Response  string `json:"response"`
	Calories  *int   `json:"calories"`
	Food      string `json:"food,omitempty"`
	SessionID string `json:"sessionId"`
}

func sendChat(ctx context.Context, c *apiClient, sessionID, message string) (chatReply, error) {
	var out chatReply
	resp, err := c.post(ctx, "/api/chat", map[string]string{
		"sessionId": sessionID,
		"message":   message,
	})
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

func printReply(r chatReply) {
	printBot(r.Response)
	if r.Calories != nil {
		label := fmt.Sprintf("%d kcal", *r.Calories)
		if r.Food != "" {
			label = r.Food + ", " + label
		}
		printStatus("Logged", "%s", label)
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to Fit Buddy",
	Long: `Send a message to Fit Buddy. Without arguments an interactive session
reads one message per line from stdin; type /reset to start over and
/quit to leave.

Examples:
  fitbuddy chat "I had 2 rotis and dal for lunch"
  fitbuddy chat --session alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		sessionID := sessionFlag(cmd)

		if len(args) > 0 {
			reply, err := sendChat(cmd.Context(), client, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printReply(reply)
			return nil
		}
		return chatLoop(cmd.Context(), client, sessionID, cmd.InOrStdin())
	},
}

func chatLoop(ctx context.Context, c *apiClient, sessionID string, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(os.Stderr, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := resetSession(ctx, c, sessionID); err != nil {
				printError("%v", err)
				continue
			}
			printSuccess("Conversation reset")
			continue
		}

		reply, err := sendChat(ctx, c, sessionID, line)
		if err != nil {
			// The server keeps the user message on upstream failures, so the
			// conversation can simply continue.
			printError("%v", err)
			continue
		}
		printReply(reply)
	}
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the session profile",
}

func fetchProfile(ctx context.Context, c *apiClient, sessionID string) (*profile.Profile, error) {
	resp, err := c.get(ctx, "/api/profile/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	var out struct {
		Profile *profile.Profile `json:"profile"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

func saveProfile(ctx context.Context, c *apiClient, sessionID string, height, weight float64, goal string) (profile.Profile, error) {
	resp, err := c.post(ctx, "/api/profile", map[string]any{
		"sessionId": sessionID,
		"height":    height,
		"weight":    weight,
		"goal":      goal,
	})
	if err != nil {
		return profile.Profile{}, err
	}
	var out struct {
		Profile profile.Profile `json:"profile"`
	}
	err = decodeJSON(resp, &out)
	return out.Profile, err
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		p, err := fetchProfile(cmd.Context(), client, sessionFlag(cmd))
		if err != nil {
			return err
		}
		if p == nil {
			printWarning("No profile for session %q", sessionFlag(cmd))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return err
		}
		printStatus("BMI", "%.1f", p.BMI())
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save height, weight and goal",
	Long: `Save the profile used to personalize advice.

Examples:
  fitbuddy profile set --height 170 --weight 70 --goal weight_loss`,
	RunE: func(cmd *cobra.Command, args []string) error {
		height, _ := cmd.Flags().GetFloat64("height")
		weight, _ := cmd.Flags().GetFloat64("weight")
		goal, _ := cmd.Flags().GetString("goal")
		if height <= 0 || weight <= 0 {
			return fmt.Errorf("--height and --weight must be positive")
		}

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		p, err := saveProfile(cmd.Context(), client, sessionFlag(cmd), height, weight, goal)
		if err != nil {
			return err
		}
		printSuccess("Profile saved (goal %s, BMI %.1f)", p.Goal, p.BMI())
		return nil
	},
}

func init() {
	goals := make([]string, len(profile.Goals))
	for i, g := range profile.Goals {
		goals[i] = string(g)
	}
	profileSetCmd.Flags().Float64("height", 0, "height in cm")
	profileSetCmd.Flags().Float64("weight", 0, "weight in kg")
	profileSetCmd.Flags().String("goal", string(profile.GoalMaintenance), "one of "+strings.Join(goals, ", "))
	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
}

// --- reset ---

func resetSession(ctx context.Context, c *apiClient, sessionID string) error {
	resp, err := c.post(ctx, "/api/reset", map[string]string{"sessionId": sessionID})
	if err != nil {
		return err
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	if !out.OK {
		return errors.New("server did not confirm the reset")
	}
	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the conversation history of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		if err := resetSession(cmd.Context(), client, sessionFlag(cmd)); err != nil {
			return err
		}
		printSuccess("Conversation reset for session %q", sessionFlag(cmd))
		return nil
	},
}

// --- meals ---

type mealsReport struct {
	Meals []journal.Meal     `json:"meals"`
	Daily []journal.DayTotal `json:"daily"`
}

func fetchMeals(ctx context.Context, c *apiClient, sessionID string, limit, days int) (mealsReport, error) {
	var out mealsReport
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("days", fmt.Sprint(days))
	resp, err := c.get(ctx, "/api/meals/"+url.PathEscape(sessionID)+"?"+q.Encode())
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

func deleteMeals(ctx context.Context, c *apiClient, sessionID string) (int64, error) {
	resp, err := c.delete(ctx, "/api/meals/"+url.PathEscape(sessionID))
	if err != nil {
		return 0, err
	}
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	err = decodeJSON(resp, &out)
	return out.Deleted, err
}

func writeMeals(w io.Writer, r mealsReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tCALORIES")
	for _, d := range r.Daily {
		fmt.Fprintf(tw, "%s\t%d\n", d.Day, d.Calories)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TIME\tCALORIES\tFOOD")
	for _, m := range r.Meals {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", m.CreatedAt.Local().Format(time.DateTime), m.Calories, m.Food)
	}
	tw.Flush()
}

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "Show logged meals and daily calorie totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		days, _ := cmd.Flags().GetInt("days")
		purge, _ := cmd.Flags().GetBool("delete")
		confirm, _ := cmd.Flags().GetBool("confirm")

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		sessionID := sessionFlag(cmd)

		if purge {
			if !confirm {
				printWarning("This deletes every logged meal of session %q. Use --confirm to proceed.", sessionID)
				return nil
			}
			n, err := deleteMeals(cmd.Context(), client, sessionID)
			if err != nil {
				return err
			}
			printSuccess("Deleted %d meals", n)
			return nil
		}

		report, err := fetchMeals(cmd.Context(), client, sessionID, limit, days)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				printWarning("The meal journal is disabled on the server")
				return nil
			}
			return err
		}
		if len(report.Meals) == 0 {
			printWarning("No meals logged for session %q", sessionID)
			return nil
		}
		writeMeals(os.Stdout, report)
		return nil
	},
}

func init() {
	mealsCmd.Flags().Int("limit", 20, "maximum number of meals to list")
	mealsCmd.Flags().Int("days", 7, "number of days of totals to show")
	mealsCmd.Flags().Bool("delete", false, "delete the session's meals instead of listing them")
	mealsCmd.Flags().Bool("confirm", false, "confirm --delete")
}

// --- status ---

type healthReport struct {
	Status string `json:"status"`
	Bot    string `json:"bot"`
}

func checkHealth(ctx context.Context, c *apiClient) (healthReport, error) {
	var out healthReport
	resp, err := c.get(ctx, "/api/health")
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Still show partial status even if config fails.
			printError("config error: %v", err)
		}

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()

		if h, err := checkHealth(ctx, client); err != nil {
			printStatus("Server", "stopped (%s)", client.baseURL)
		} else {
			printStatus("Server", "%s at %s (%s)", h.Status, client.baseURL, h.Bot)
		}

		printStatus("Provider", "%s", cfg.LLM.Provider)
		model := cfg.LLM.Model
		if model == "" {
			model = "provider default"
		}
		printStatus("Model", "%s", model)
		printStatus("API key", "%s", keyState(cfg.LLM.APIKey))
		printStatus("Max turns", "%d", cfg.Session.MaxTurns)
		printStatus("Journal", "%t", cfg.Storage.JournalEnabled)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

func keyState(key string) string {
	if key == "" {
		return colorize(colorRed, "missing")
	}
	return colorize(colorGreen, "set")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		printStatus("File", "%s", config.ConfigFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the JSON config file.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the model provider API key in the secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(strings.TrimSpace(args[0])); err != nil {
			return err
		}
		printSuccess("API key stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetKeyCmd)
}
