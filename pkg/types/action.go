package types

// ActionType identifies a follow-up operation derived from analysis.
type ActionType string

// Recognized action types.
const (
	ActionAddToCollection     ActionType = "ADD_TO_COLLECTION"
	ActionCreateReminder      ActionType = "CREATE_REMINDER"
	ActionAddTag              ActionType = "ADD_TAG"
	ActionCreateCalendarEvent ActionType = "CREATE_CALENDAR_EVENT"
	ActionNotify              ActionType = "NOTIFY"
	ActionSummarize           ActionType = "SUMMARIZE"
	ActionExtractEntities     ActionType = "EXTRACT_ENTITIES"
)

// ValidActionTypes contains all recognized action types.
var ValidActionTypes = []ActionType{
	ActionAddToCollection,
	ActionCreateReminder,
	ActionAddTag,
	ActionCreateCalendarEvent,
	ActionNotify,
	ActionSummarize,
	ActionExtractEntities,
}

// IsValidActionType checks whether t is a recognized action type.
func IsValidActionType(t ActionType) bool {
	for _, v := range ValidActionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Action is a single typed operation in an action plan.
type Action struct {
	Type      ActionType             `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Priority  int                    `json:"priority"` // clamped to [1,10]
	Reasoning string                 `json:"reasoning"`
}

// ClampPriority clamps the action's priority into [1,10].
func (a *Action) ClampPriority() {
	if a.Priority < 1 {
		a.Priority = 1
	}
	if a.Priority > 10 {
		a.Priority = 10
	}
}

// ActionPlan is a prioritized set of follow-up operations for a capture.
type ActionPlan struct {
	CaptureID  string   `json:"capture_id"`
	UserID     string   `json:"user_id"`
	Actions    []Action `json:"actions"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"` // clamped to [0,1]
}

// Clamp enforces the declared ranges on the plan's confidence and every
// action's priority, regardless of what the inference service returned.
func (p *ActionPlan) Clamp() {
	p.Confidence = Clamp01(p.Confidence)
	for i := range p.Actions {
		p.Actions[i].ClampPriority()
	}
}
