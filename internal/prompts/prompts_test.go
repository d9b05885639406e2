package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func makePromptReq(args map[string]string) mcp.GetPromptRequest {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args
	return req
}

func promptText(t *testing.T, r *mcp.GetPromptResult) string {
	t.Helper()
	if r == nil || len(r.Messages) != 1 {
		t.Fatalf("expected one message, got %+v", r)
	}
	tc, ok := r.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", r.Messages[0].Content)
	}
	return tc.Text
}

func TestStartPrompt_Definition(t *testing.T) {
	def := NewStartPrompt().Definition()
	if def.Name != "softdev-start" {
		t.Errorf("prompt name = %q", def.Name)
	}
	var required []string
	for _, a := range def.Arguments {
		if a.Required {
			required = append(required, a.Name)
		}
	}
	if len(required) != 1 || required[0] != "root_path" {
		t.Errorf("required arguments = %v, want [root_path]", required)
	}
}

func TestStartPrompt_Handle(t *testing.T) {
	p := NewStartPrompt()

	r, err := p.Handle(context.Background(), makePromptReq(map[string]string{
		"root_path": "/src/My Kernel",
	}))
	if err != nil {
		t.Fatal(err)
	}
	text := promptText(t, r)
	for _, want := range []string{"softdev_analyze_project", "project_id='my-kernel'", "depth='full'", "softdev_curate"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q:\n%s", want, text)
		}
	}

	if _, err := p.Handle(context.Background(), makePromptReq(nil)); err == nil {
		t.Error("expected an error without root_path")
	}
}

func TestImpactPrompt_Handle(t *testing.T) {
	p := NewImpactPrompt()
	if p.Definition().Name != "softdev-impact" {
		t.Errorf("prompt name = %q", p.Definition().Name)
	}

	r, err := p.Handle(context.Background(), makePromptReq(map[string]string{
		"project_id": "kernel",
		"target":     "func:kmalloc",
		"change":     "add a flags argument",
	}))
	if err != nil {
		t.Fatal(err)
	}
	text := promptText(t, r)
	for _, want := range []string{"func:kmalloc", "add a flags argument", "softdev_status", "softdev_impact"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if _, err := p.Handle(context.Background(), makePromptReq(map[string]string{"project_id": "kernel"})); err == nil {
		t.Error("expected an error without target")
	}
}

func TestProjectFromRoot(t *testing.T) {
	tests := map[string]string{
		"/home/me/linux":  "linux",
		"/src/My Kernel/": "my-kernel",
		"/":               "project",
		"/tmp/.hidden":    "hidden",
	}
	for in, want := range tests {
		if got := projectFromRoot(in); got != want {
			t.Errorf("projectFromRoot(%q) = %q, want %q", in, got, want)
		}
	}
}
