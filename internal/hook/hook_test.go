package hook

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestRead(t *testing.T) {
	payload := `{
		"session_id": "abc-123",
		"transcript_path": "/tmp/t.jsonl",
		"cwd": "C:\\src\\api",
		"hook_event_name": "UserPromptSubmit",
		"prompt": "// api",
		"permission_mode": "default",
		"extra": {"ignored": true}
	}`
	in, err := Read(strings.NewReader(payload), DefaultMaxInput)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := Input{
		SessionID:      "abc-123",
		HookEventName:  "UserPromptSubmit",
		Prompt:         "// api",
		PermissionMode: "default",
		Cwd:            `C:\src\api`,
		TranscriptPath: "/tmp/t.jsonl",
	}
	if in != want {
		t.Errorf("Read = %+v, want %+v", in, want)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int64
		want  error
	}{
		{"empty", "", 0, ErrNoInput},
		{"whitespace", " \n\t", 0, ErrNoInput},
		{"not json", "hello", 0, ErrInvalid},
		{"array", `["prompt"]`, 0, ErrInvalid},
		{"truncated", `{"prompt": "x"`, 0, ErrInvalid},
		{"too large", `{"prompt": "` + strings.Repeat("a", 64) + `"}`, 32, ErrTooLarge},
		{"exactly at limit", strings.Repeat(" ", 16), 16, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.limit)
			if !errors.Is(err, tt.want) {
				t.Errorf("Read error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadMissingFields(t *testing.T) {
	in, err := Read(strings.NewReader(`{"prompt": "hi"}`), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if in.Prompt != "hi" || in.SessionID != "" || in.Cwd != "" {
		t.Errorf("Read = %+v", in)
	}
}

func TestIsTrigger(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"//", true},
		{"// some text", true},
		{"  //", true},
		{"hello", false},
		{"/hello", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTrigger(tt.prompt, "//"); got != tt.want {
			t.Errorf("IsTrigger(%q) = %v, want %v", tt.prompt, got, tt.want)
		}
	}
	if IsTrigger("// x", "") {
		t.Error("empty trigger should never match")
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		prompt, want string
	}{
		{"//", ""},
		{"// api server ", "api server"},
		{"  //frontend", "frontend"},
		{"not a trigger", ""},
	}
	for _, tt := range tests {
		if got := Label(tt.prompt, "//"); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}

func TestWriteContext(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteContext(&buf, "こんにちは\n二行目"); err != nil {
		t.Fatal(err)
	}
	want := "[User's actual request from input helper]:\nこんにちは\n二行目\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, "", "do the thing"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if got := gjson.Get(out, "hookSpecificOutput.hookEventName").String(); got != "UserPromptSubmit" {
		t.Errorf("hookEventName = %q", got)
	}
	ctx := gjson.Get(out, "hookSpecificOutput.additionalContext").String()
	if !strings.HasPrefix(ctx, ContextHeader) || !strings.HasSuffix(ctx, "do the thing") {
		t.Errorf("additionalContext = %q", ctx)
	}
}
