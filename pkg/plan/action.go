package plan

import "slices"

// Action is a metered operation subject to a plan limit.
// The set is closed: plans and the enforcement engine share this enumeration,
// so a typo cannot silently resolve to "no limit configured".
type Action string

const (
	ActionForms         Action = "forms"
	ActionResponses     Action = "responses"
	ActionStorage       Action = "storage" // measured in MB
	ActionAPICalls      Action = "apiCalls"
	ActionAIGenerations Action = "aiGenerations"
	ActionTeamMembers   Action = "teamMembers"
)

var actions = []Action{
	ActionForms,
	ActionResponses,
	ActionStorage,
	ActionAPICalls,
	ActionAIGenerations,
	ActionTeamMembers,
}

var nouns = map[Action]string{
	ActionForms:         "forms",
	ActionResponses:     "responses",
	ActionStorage:       "MB of storage",
	ActionAPICalls:      "API calls",
	ActionAIGenerations: "AI generations",
	ActionTeamMembers:   "team members",
}

// Actions returns every metered action in a fixed order.
func Actions() []Action {
	return slices.Clone(actions)
}

// Valid reports whether a is one of the recognized metered actions.
func (a Action) Valid() bool {
	return slices.Contains(actions, a)
}

// Noun returns a human readable, pluralized name for the action.
func (a Action) Noun() string {
	if n, ok := nouns[a]; ok {
		return n
	}
	return string(a)
}

func (a Action) String() string {
	return string(a)
}

// ParseAction converts s into an Action, rejecting unknown names.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", ErrUnknownAction
	}
	return a, nil
}
