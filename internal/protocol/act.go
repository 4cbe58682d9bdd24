package protocol

// Command types carried by ACT.
const (
	CmdActivate      = "ACTIVATE"
	CmdActivateByTag = "ACTIVATE_BY_TAG"
	CmdEnd           = "END"
	CmdCancel        = "CANCEL"
	CmdConfirm       = "CONFIRM"
	CmdDecline       = "DECLINE"
	CmdCancelTasks   = "CANCEL_TASKS"
	CmdEvent         = "EVENT"
	CmdInhibit       = "INHIBIT"
	CmdBlockInput    = "BLOCK_INPUT"
	CmdUnblockInput  = "UNBLOCK_INPUT"
	CmdPressInput    = "PRESS_INPUT"
	CmdReleaseInput  = "RELEASE_INPUT"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	ActorID         string    `json:"actor_id"`
	Commands        []Command `json:"commands"`
}

// Command is one request against the sender's own ability component.
// Which fields matter depends on Type.
type Command struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Handle or Ability selects a granted spec; Handle wins when both are
	// set.
	Handle  uint32 `json:"handle,omitempty"`
	Ability string `json:"ability,omitempty"`

	// PredictionKey names the activation for END, CANCEL, CONFIRM, DECLINE
	// and CANCEL_TASKS, and is the client's key for ACTIVATE.
	PredictionKey uint32 `json:"prediction_key,omitempty"`

	Tag      string   `json:"tag,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	TaskName string   `json:"task_name,omitempty"`
	InputID  *int     `json:"input_id,omitempty"`
	Inhibit  bool     `json:"inhibit,omitempty"`

	// EVENT payload.
	TargetID  string  `json:"target_id,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty"`
}

// Valid reports whether the command has the fields its type needs.
func (c Command) Valid() bool {
	if c.ID == "" {
		return false
	}
	switch c.Type {
	case CmdActivate, CmdEnd, CmdCancel, CmdConfirm, CmdDecline:
		return c.Handle != 0 || c.Ability != ""
	case CmdCancelTasks:
		return (c.Handle != 0 || c.Ability != "") && c.TaskName != ""
	case CmdActivateByTag:
		return len(c.Tags) > 0
	case CmdEvent:
		return c.Tag != ""
	case CmdInhibit:
		return true
	case CmdBlockInput, CmdUnblockInput, CmdPressInput, CmdReleaseInput:
		return c.InputID != nil
	}
	return false
}
