package domain

import "time"

// Review action types.
const (
	// ReviewActionCommand runs a command and checks exit code and output.
	ReviewActionCommand = "command"

	// ReviewActionReview asks the developer to review files manually.
	ReviewActionReview = "review"

	// ReviewActionCheck asks the developer to confirm a condition manually.
	ReviewActionCheck = "check"
)

// ReviewChecklist is the dedicated checklist instantiated on a task when it
// enters REVIEWING. It is separate from the state-wide default checklist.
type ReviewChecklist struct {
	// CreatedAt is when the checklist was instantiated.
	CreatedAt time.Time `json:"createdAt"`

	// Items is the ordered set of actionable items.
	Items []ReviewItem `json:"items"`
}

// ReviewItem is one actionable entry in the review checklist.
type ReviewItem struct {
	// ID is the stable item identifier.
	ID string `json:"id"`

	// Title is the short human-readable title.
	Title string `json:"title"`

	// Description explains what to verify.
	Description string `json:"description"`

	// Action describes how the item is carried out.
	Action ReviewAction `json:"action"`

	// Completed is true once the item passed or was manually completed.
	Completed bool `json:"completed"`

	// CompletedAt is when the item was completed.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Notes is optional free text recorded at completion.
	Notes string `json:"notes,omitempty"`
}

// ReviewAction describes how a review item is verified. Command actions may
// be auto-completed by running their command; review/check actions require
// explicit completion.
type ReviewAction struct {
	// Type is one of command, review, check.
	Type string `json:"type"`

	// Command is the shell command for command actions.
	Command string `json:"command,omitempty"`

	// ExpectedExitCode is the exit code a command action must produce.
	ExpectedExitCode int `json:"expectedExitCode,omitempty"`

	// ExpectedOutput lists substrings the command output must contain.
	ExpectedOutput []string `json:"expectedOutput,omitempty"`

	// Files lists file globs the developer should inspect for review/check actions.
	Files []string `json:"files,omitempty"`

	// ExpectedResult is the textual expected outcome for review/check actions.
	ExpectedResult string `json:"expectedResult,omitempty"`
}

// Automated reports whether the item can be auto-completed by running its command.
func (i *ReviewItem) Automated() bool {
	return i.Action.Type == ReviewActionCommand
}

// FindItem returns the item with the given id, or nil.
func (c *ReviewChecklist) FindItem(id string) *ReviewItem {
	if c == nil {
		return nil
	}
	for idx := range c.Items {
		if c.Items[idx].ID == id {
			return &c.Items[idx]
		}
	}
	return nil
}

// Clone returns a deep copy of the checklist.
func (c *ReviewChecklist) Clone() *ReviewChecklist {
	if c == nil {
		return nil
	}
	out := &ReviewChecklist{
		CreatedAt: c.CreatedAt,
		Items:     make([]ReviewItem, len(c.Items)),
	}
	copy(out.Items, c.Items)
	for idx := range out.Items {
		item := &out.Items[idx]
		item.Action.ExpectedOutput = append([]string(nil), item.Action.ExpectedOutput...)
		item.Action.Files = append([]string(nil), item.Action.Files...)
	}
	return out
}
