package models

// StrategyMode is the orchestration engine's chosen response style for a
// turn. The set is closed: the engine picks exactly one per exchange.
type StrategyMode string

const (
	StrategyDeEscalation  StrategyMode = "de_escalation"
	StrategySimplified    StrategyMode = "simplified"
	StrategyFullPlan      StrategyMode = "full_plan"
	StrategyCrisisSupport StrategyMode = "crisis_support"
)

// Valid reports whether the mode is one of the known strategy modes.
func (m StrategyMode) Valid() bool {
	switch m {
	case StrategyDeEscalation, StrategySimplified, StrategyFullPlan, StrategyCrisisSupport:
		return true
	}
	return false
}

// StrategyModes lists all known modes in a stable order.
func StrategyModes() []StrategyMode {
	return []StrategyMode{
		StrategyDeEscalation,
		StrategySimplified,
		StrategyFullPlan,
		StrategyCrisisSupport,
	}
}

// Baseline agent names. The full roster (including any deployment-specific
// agents) lives in the agents registry; these three always exist.
const (
	AgentIntakeSpecialist = "intake_specialist"
	AgentFinancialPlanner = "financial_planner"
	AgentSynthesizer      = "synthesizer"
)
