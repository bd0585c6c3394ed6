package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpt/klein-bot/pkg/logger"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "console", "init", "schema"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("log-level") == nil {
		t.Error("persistent flags missing")
	}
}

func TestSchemaCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"schema"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	var schema map[string]any
	if err := json.Unmarshal(out.Bytes(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || props["prefix"] == nil || props["discord"] == nil {
		t.Errorf("schema properties = %v", schema["properties"])
	}
}

func TestDefaultModel(t *testing.T) {
	if defaultModel("gemini") == "" || defaultModel("ollama") == defaultModel("openai") {
		t.Error("each backend should have its own default model")
	}
}

func TestSetupLoggingSharesDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prev := logger.Default
	t.Cleanup(func() { logger.Default = prev })

	var console bytes.Buffer
	log := setupLogging("info", &console)
	if log != logger.Default {
		t.Fatal("expected run logger to be the global default")
	}
	log.Info("kleinbot test line")

	data, err := os.ReadFile(filepath.Join(logger.LogDir(), "kleinbot.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if n := strings.Count(string(data), "kleinbot test line"); n != 1 {
		t.Errorf("expected the line once in the log file, got %d", n)
	}
	if !strings.Contains(console.String(), "kleinbot test line") {
		t.Errorf("console output = %q", console.String())
	}
}
