package cli

import (
	"encoding/json"
	"io"
)

// hookInput mirrors the JSON payload the host writes to stdin for every
// hook invocation. Fields are optional since SessionStart omits tool_*.
type hookInput struct {
	SessionID    string          `json:"session_id"`
	CWD          string          `json:"cwd"`
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
	Message      string          `json:"message"`
}

func readHookInput(r io.Reader) (hookInput, error) {
	var in hookInput
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil && err != io.EOF {
		return in, err
	}
	return in, nil
}

// bashCommand extracts the "command" field from tool_input when the tool is
// Bash; empty for any other tool or malformed input.
func (h hookInput) bashCommand() string {
	if h.ToolName != "Bash" || len(h.ToolInput) == 0 {
		return ""
	}
	var v struct {
		Command string `json:"command"`
	}
	_ = json.Unmarshal(h.ToolInput, &v)
	return v.Command
}
