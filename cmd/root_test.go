package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	if rootCmd.Use != "docshift" {
		t.Errorf("expected Use to be 'docshift', got %q", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
}

func TestCommandsRegistered(t *testing.T) {
	commands := rootCmd.Commands()
	if len(commands) == 0 {
		t.Fatal("expected at least one subcommand to be registered")
	}

	expectedCommands := map[string]bool{
		"plan":     false,
		"status":   false,
		"migrate":  false,
		"validate": false,
		"version":  false,
	}

	for _, cmd := range commands {
		if _, exists := expectedCommands[cmd.Name()]; exists {
			expectedCommands[cmd.Name()] = true
		}
	}

	for cmdName, registered := range expectedCommands {
		if !registered {
			t.Errorf("expected command %q to be registered", cmdName)
		}
	}
}
