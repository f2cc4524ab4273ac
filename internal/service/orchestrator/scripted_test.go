package orchestrator

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"mindmoney/internal/agents"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/services"
)

func newScripted(t *testing.T) services.Engine {
	t.Helper()
	roster, err := agents.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry error = %v", err)
	}
	return NewScriptedEngine(roster)
}

func TestScriptedEngine_StrategySelection(t *testing.T) {
	engine := newScripted(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		message    string
		wantMode   models.StrategyMode
		wantSafety bool
	}{
		{
			name:       "crisis language raises safety flag",
			message:    "I feel hopeless, there is no way out of this debt",
			wantMode:   models.StrategyCrisisSupport,
			wantSafety: true,
		},
		{
			name:     "heavy anxiety cues de-escalate",
			message:  "I'm in panic, collections keep calling about my overdue debt",
			wantMode: models.StrategyDeEscalation,
		},
		{
			name:     "moderate anxiety simplifies",
			message:  "I'm scared about my overdue rent",
			wantMode: models.StrategySimplified,
		},
		{
			name:     "calm message gets the full plan",
			message:  "Can you help me set up a budget for my savings?",
			wantMode: models.StrategyFullPlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Respond(ctx, &services.EngineRequest{
				SessionID: "s1",
				Message:   tt.message,
			})
			if err != nil {
				t.Fatalf("Respond error = %v", err)
			}
			if result.Metrics.StrategyMode == nil || *result.Metrics.StrategyMode != tt.wantMode {
				t.Errorf("StrategyMode = %v, want %s", result.Metrics.StrategyMode, tt.wantMode)
			}
			if result.Metrics.SafetyFlag != tt.wantSafety {
				t.Errorf("SafetyFlag = %v, want %v", result.Metrics.SafetyFlag, tt.wantSafety)
			}
			if result.Response == "" {
				t.Error("Response is empty")
			}
		})
	}
}

func TestScriptedEngine_CrisisMaxesAnxiety(t *testing.T) {
	engine := newScripted(t)

	result, err := engine.Respond(context.Background(), &services.EngineRequest{
		SessionID: "s1",
		Message:   "I want to end it, I can't pay anything",
	})
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}
	if result.Metrics.IntakeAnxiety == nil || *result.Metrics.IntakeAnxiety != 10 {
		t.Errorf("IntakeAnxiety = %v, want 10", result.Metrics.IntakeAnxiety)
	}
}

func TestScriptedEngine_OneLogPerAgent(t *testing.T) {
	roster, err := agents.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry error = %v", err)
	}
	engine := NewScriptedEngine(roster)

	result, err := engine.Respond(context.Background(), &services.EngineRequest{
		SessionID: "s1",
		Message:   "hello",
	})
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}

	agentsInRoster := roster.List()
	if len(result.Logs) != len(agentsInRoster) {
		t.Fatalf("len(Logs) = %d, want %d", len(result.Logs), len(agentsInRoster))
	}
	for i, entry := range result.Logs {
		if entry.AgentName != agentsInRoster[i].Name {
			t.Errorf("Logs[%d].AgentName = %s, want %s", i, entry.AgentName, agentsInRoster[i].Name)
		}
		if entry.ModelUsed == nil || *entry.ModelUsed != agentsInRoster[i].Model {
			t.Errorf("Logs[%d].ModelUsed = %v, want %s", i, entry.ModelUsed, agentsInRoster[i].Model)
		}
		if entry.DecisionMade == nil || *entry.DecisionMade == "" {
			t.Errorf("Logs[%d].DecisionMade is empty", i)
		}
	}
}

func TestScriptedEngine_Deterministic(t *testing.T) {
	engine := newScripted(t)
	ctx := context.Background()
	req := &services.EngineRequest{SessionID: "s1", Message: "my rent is overdue and I'm scared"}

	first, err := engine.Respond(ctx, req)
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}
	second, err := engine.Respond(ctx, req)
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}

	if first.Response != second.Response {
		t.Errorf("Response differs across identical calls:\n%q\n%q", first.Response, second.Response)
	}
	if *first.Metrics.IntakeAnxiety != *second.Metrics.IntakeAnxiety {
		t.Errorf("IntakeAnxiety differs: %d vs %d", *first.Metrics.IntakeAnxiety, *second.Metrics.IntakeAnxiety)
	}
}

func TestScriptedEngine_CountsMoneyEntities(t *testing.T) {
	engine := newScripted(t)

	result, err := engine.Respond(context.Background(), &services.EngineRequest{
		SessionID: "s1",
		Message:   "My rent is $1400 and the card bill is $300 on top of my loan",
	})
	if err != nil {
		t.Fatalf("Respond error = %v", err)
	}
	if result.Metrics.EntitiesCount < 3 {
		t.Errorf("EntitiesCount = %d, want at least 3", result.Metrics.EntitiesCount)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "short message unchanged", message: "my rent went up"},
		{name: "long ascii truncated", message: strings.Repeat("a", 200)},
		{name: "multi-byte rune at the cut", message: strings.Repeat("a", 76) + "é and a long tail that forces truncation"},
		{name: "all multi-byte", message: strings.Repeat("日本語のメッセージ", 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarize(tt.message)
			if !utf8.ValidString(got) {
				t.Fatalf("summarize produced invalid UTF-8: %q", got)
			}
			if len(got) > 80 {
				t.Errorf("len(summary) = %d, want <= 80", len(got))
			}
			if len(tt.message) <= 80 && got != strings.TrimSpace(tt.message) {
				t.Errorf("summary = %q, want the message unchanged", got)
			}
			if len(tt.message) > 80 && !strings.HasSuffix(got, "...") {
				t.Errorf("summary = %q, want a truncation suffix", got)
			}
		})
	}
}

func TestScriptedEngine_CancelledContext(t *testing.T) {
	engine := newScripted(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Respond(ctx, &services.EngineRequest{SessionID: "s1", Message: "hello"})
	if err == nil {
		t.Fatal("Respond error = nil with cancelled context, want error")
	}
}
