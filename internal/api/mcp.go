package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/fitbuddy/internal/chat"
	"github.com/kalambet/fitbuddy/internal/profile"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat     ChatHandler
	Profiles profile.Store
	Sessions SessionResetter
	Meals    MealJournal // optional; if nil, calorie_summary returns an error
	Version  string
}

// NewMCPServer creates an MCP server exposing the Fit Buddy tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"fitbuddy",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Fit Buddy: a friendly Indian-food nutrition companion. Chat about meals and read calorie totals."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to Fit Buddy and get a reply with an optional calorie estimate."),
			mcp.WithString("message", mcp.Description("What the user ate or wants to ask"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation id (default \"default\")")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("save_profile",
			mcp.WithDescription("Save height, weight, and fitness goal for a session. Applies from the next chat turn."),
			mcp.WithNumber("height", mcp.Description("Height in cm"), mcp.Required()),
			mcp.WithNumber("weight", mcp.Description("Weight in kg"), mcp.Required()),
			mcp.WithString("goal", mcp.Description("Fitness goal"), mcp.Enum(goalNames()...)),
			mcp.WithString("session_id", mcp.Description("Conversation id (default \"default\")")),
		),
		mcpSaveProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return the saved profile of a session as JSON, or null."),
			mcp.WithString("session_id", mcp.Description("Conversation id (default \"default\")")),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_session",
			mcp.WithDescription("Forget the conversation history of a session. The profile is kept."),
			mcp.WithString("session_id", mcp.Description("Conversation id (default \"default\")")),
		),
		mcpResetSession(deps),
	)

	s.AddTool(
		mcp.NewTool("calorie_summary",
			mcp.WithDescription("Daily calorie totals recorded from chat replies."),
			mcp.WithString("session_id", mcp.Description("Conversation id (default \"default\")")),
			mcp.WithNumber("days", mcp.Description("Number of days to include, today included (default 7)")),
		),
		mcpCalorieSummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"fitbuddy://goals",
			"Fitness Goals",
			mcp.WithResourceDescription("Goals accepted by save_profile"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceGoals,
	)

	return s
}

func goalNames() []string {
	names := make([]string, len(profile.Goals))
	for i, g := range profile.Goals {
		names[i] = string(g)
	}
	return names
}

func sessionArg(req mcp.CallToolRequest) string {
	if id := req.GetString("session_id", ""); id != "" {
		return id
	}
	return defaultSessionID
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		res, err := deps.Chat.Handle(ctx, sessionArg(req), message)
		if err != nil {
			var authErr *chat.UpstreamAuthError
			if errors.As(err, &authErr) {
				return mcpError("model provider rejected the API key; check llm.api_key"), nil
			}
			return mcpError(fmt.Sprintf("%s: %v", chat.ErrorType(err), err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		height, err := req.RequireFloat("height")
		if err != nil {
			return mcpError("height is required"), nil
		}
		weight, err := req.RequireFloat("weight")
		if err != nil {
			return mcpError("weight is required"), nil
		}

		saved, err := deps.Profiles.Set(sessionArg(req), profile.Profile{
			HeightCM: height,
			WeightKG: weight,
			Goal:     profile.Goal(req.GetString("goal", "")),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save profile: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved profile: %.4g cm, %.4g kg, BMI %.1f, goal %s",
			saved.HeightCM, saved.WeightKG, saved.BMI(), saved.Goal)), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, ok := deps.Profiles.Get(sessionArg(req))
		if !ok {
			return mcpText("null"), nil
		}
		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResetSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := sessionArg(req)
		deps.Sessions.Reset(id)
		return mcpText(fmt.Sprintf("Conversation %s reset", id)), nil
	}
}

func mcpCalorieSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Meals == nil {
			return mcpError("calorie summary not available: meal journal is disabled"), nil
		}

		days := req.GetInt("days", defaultMealDays)
		if days <= 0 {
			days = defaultMealDays
		}

		totals, err := deps.Meals.DailyTotals(ctx, sessionArg(req), days)
		if err != nil {
			return mcpError(fmt.Sprintf("summary failed: %v", err)), nil
		}
		b, err := json.Marshal(totals)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal totals: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceGoals(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(goalNames())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal goals: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
