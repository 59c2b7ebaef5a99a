// Package hook handles the coding assistant's UserPromptSubmit hook: it reads
// the submitted prompt from stdin and, when the prompt is the trigger, lets
// the user compose the real request in the bridge.
package hook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/term"
)

// DefaultMaxInput bounds the hook payload.
const DefaultMaxInput = 100 * 1024

// ContextHeader precedes the composed text in the hook output.
const ContextHeader = "[User's actual request from input helper]:"

var (
	ErrTooLarge = errors.New("hook input too large")
	ErrNoInput  = errors.New("no hook input on stdin")
	ErrInvalid  = errors.New("hook input is not a JSON object")
)

// Input is the UserPromptSubmit payload.
type Input struct {
	SessionID      string
	HookEventName  string
	Prompt         string
	PermissionMode string
	Cwd            string
	TranscriptPath string
}

// Read parses a payload of at most limit bytes. Unknown fields are ignored
// and missing ones are left empty.
func Read(r io.Reader, limit int64) (Input, error) {
	if limit <= 0 {
		limit = DefaultMaxInput
	}
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return Input{}, fmt.Errorf("failed to read hook input: %w", err)
	}
	if int64(len(data)) >= limit {
		return Input{}, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, limit)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Input{}, ErrNoInput
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Input{}, ErrInvalid
	}

	f := gjson.GetManyBytes(data, "session_id", "hook_event_name", "prompt", "permission_mode", "cwd", "transcript_path")
	return Input{
		SessionID:      f[0].String(),
		HookEventName:  f[1].String(),
		Prompt:         f[2].String(),
		PermissionMode: f[3].String(),
		Cwd:            f[4].String(),
		TranscriptPath: f[5].String(),
	}, nil
}

// IsTrigger reports whether prompt asks for the bridge.
func IsTrigger(prompt, trigger string) bool {
	return trigger != "" && strings.HasPrefix(strings.TrimSpace(prompt), trigger)
}

// Label is the text after the trigger, used to name the launched bridge.
func Label(prompt, trigger string) string {
	if !IsTrigger(prompt, trigger) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(prompt), trigger))
}

// WriteContext prints text as additional context for the prompt.
func WriteContext(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", ContextHeader, text)
	return err
}

type output struct {
	HookSpecificOutput specificOutput `json:"hookSpecificOutput"`
}

type specificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// WriteJSON prints text in the structured hook output format.
func WriteJSON(w io.Writer, event, text string) error {
	if event == "" {
		event = "UserPromptSubmit"
	}
	return json.NewEncoder(w).Encode(output{
		HookSpecificOutput: specificOutput{
			HookEventName:     event,
			AdditionalContext: ContextHeader + "\n" + text,
		},
	})
}

// StdinIsTerminal reports whether stdin is interactive, i.e. the command
// was run by hand rather than by the assistant.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
