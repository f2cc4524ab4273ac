// Package orchestrator provides Engine implementations: a remote relay to
// the real multi-agent engine, and a deterministic scripted engine for
// development and tests that runs without API keys.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mindmoney/internal/agents"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/services"
)

// Keyword cues for the scripted intake heuristics. These deliberately
// mirror the kinds of signals the real intake agent extracts, not its
// quality: the scripted engine only needs plausible, deterministic output.
var (
	crisisCues  = []string{"hopeless", "can't go on", "cant go on", "end it", "kill myself", "no way out"}
	anxietyCues = []string{"debt", "collection", "collections", "eviction", "overdue", "panic", "scared", "terrified", "foreclosure", "bankrupt"}
	shameCues   = []string{"ashamed", "embarrassed", "failure", "stupid", "my fault", "hide", "hiding"}
	moneyCues   = []string{"$", "loan", "card", "rent", "mortgage", "salary", "paycheck", "bill", "bills", "savings"}
)

// ScriptedEngine is a deterministic stand-in for the orchestration
// engine. It produces one log entry per roster agent and keyword-derived
// metrics, so the full store pipeline can run end to end in development.
type ScriptedEngine struct {
	roster *agents.Registry
}

// NewScriptedEngine creates a scripted engine over the agent roster
func NewScriptedEngine(roster *agents.Registry) services.Engine {
	return &ScriptedEngine{roster: roster}
}

// Respond produces a deterministic response for the message.
func (e *ScriptedEngine) Respond(ctx context.Context, req *services.EngineRequest) (*services.EngineResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	message := strings.ToLower(req.Message)

	anxiety := scoreCues(message, anxietyCues, 3)
	shame := scoreCues(message, shameCues, 3)
	safety := containsAny(message, crisisCues)
	entities := countCues(message, moneyCues)

	mode := models.StrategyFullPlan
	switch {
	case safety:
		mode = models.StrategyCrisisSupport
		anxiety = 10
	case anxiety >= 7:
		mode = models.StrategyDeEscalation
	case anxiety >= 4:
		mode = models.StrategySimplified
	}

	result := &services.EngineResult{
		Response: e.compose(mode, req, entities),
		Metrics: models.TurnMetrics{
			IntakeAnxiety: &anxiety,
			IntakeShame:   &shame,
			SafetyFlag:    safety,
			StrategyMode:  &mode,
			EntitiesCount: entities,
		},
	}

	for _, agent := range e.roster.List() {
		model := agent.Model
		decision := e.decisionFor(agent.Name, mode, safety)
		duration := 40 + 10*len(result.Logs)
		result.Logs = append(result.Logs, services.EngineLog{
			AgentName:     agent.Name,
			ModelUsed:     &model,
			InputSummary:  summarize(req.Message),
			OutputSummary: fmt.Sprintf("%s completed for turn", agent.Role),
			DecisionMade:  &decision,
			DurationMs:    &duration,
		})
	}

	return result, nil
}

func (e *ScriptedEngine) compose(mode models.StrategyMode, req *services.EngineRequest, entities int) string {
	var b strings.Builder
	switch mode {
	case models.StrategyCrisisSupport:
		b.WriteString("I'm really glad you told me this. Your safety matters more than any bill. ")
		b.WriteString("If you are in immediate distress, please reach out to someone you trust or a crisis line right now. ")
		b.WriteString("The money part can wait until you're steady - and when you are, we'll take it one small step at a time.")
	case models.StrategyDeEscalation:
		b.WriteString("That sounds genuinely stressful, and it makes sense you feel this way. ")
		b.WriteString("Let's slow down and look at just one thing together - nothing else needs solving today.")
	case models.StrategySimplified:
		b.WriteString("Thanks for laying that out. Let's keep it simple: ")
		b.WriteString("pick the single most urgent item and we'll handle only that first.")
	default:
		b.WriteString("Here's a plan we can work with. ")
		if entities > 0 {
			fmt.Fprintf(&b, "I counted %d money items in what you shared; ", entities)
		}
		b.WriteString("we'll order them by urgency and tackle the top of the list first.")
	}
	if len(req.History) > 0 {
		fmt.Fprintf(&b, " (We're %d turns into this conversation - progress counts.)", len(req.History))
	}
	return b.String()
}

func (e *ScriptedEngine) decisionFor(agent string, mode models.StrategyMode, safety bool) string {
	switch agent {
	case models.AgentIntakeSpecialist:
		if safety {
			return "raised safety flag"
		}
		return "profiled emotions from message cues"
	case models.AgentFinancialPlanner:
		return "extracted financial entities and drafted steps"
	case models.AgentSynthesizer:
		return fmt.Sprintf("selected %s strategy", mode)
	default:
		return "completed"
	}
}

// summarize truncates a message for the input_summary field. The cut
// backs up to a rune boundary so a multi-byte character straddling the
// limit never yields invalid UTF-8.
func summarize(message string) string {
	const max = 80
	message = strings.TrimSpace(message)
	if len(message) <= max {
		return message
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "..."
}

func containsAny(message string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(message, cue) {
			return true
		}
	}
	return false
}

// scoreCues maps cue hits to a 0-10 score, perHit points each.
func scoreCues(message string, cues []string, perHit int) int {
	score := 0
	for _, cue := range cues {
		if strings.Contains(message, cue) {
			score += perHit
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

func countCues(message string, cues []string) int {
	count := 0
	for _, cue := range cues {
		count += strings.Count(message, cue)
	}
	return count
}
