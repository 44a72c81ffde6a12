package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		level Level
		child []string
	}{
		{name: "defaults", args: nil, level: LevelServe, child: []string{}},
		{name: "levelOnly", args: []string{"--log-level", "dev"}, level: LevelDev, child: []string{}},
		{name: "levelBetweenArgs", args: []string{"--model", "x", "--log-level", "warn", "--debug"}, level: LevelWarn, child: []string{"--model", "x", "--debug"}},
		{name: "dropsBlank", args: []string{"", "  ", "a", "\t", "b"}, level: LevelServe, child: []string{"a", "b"}},
		{name: "keepsInnerSpaces", args: []string{" padded "}, level: LevelServe, child: []string{" padded "}},
		{name: "lastLevelWins", args: []string{"--log-level", "dev", "--log-level", "error"}, level: LevelError, child: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := ParseArgs(tc.args)
			if err != nil {
				t.Fatalf("ParseArgs returned error: %v", err)
			}
			if opts.LogLevel != tc.level {
				t.Fatalf("expected level %q, got %q", tc.level, opts.LogLevel)
			}
			if !reflect.DeepEqual(opts.ChildArgs, tc.child) {
				t.Fatalf("expected child args %q, got %q", tc.child, opts.ChildArgs)
			}
		})
	}
}

func TestParseArgsRejectsInvalidLevel(t *testing.T) {
	_, err := ParseArgs([]string{"--log-level", "loud"})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}
	if !strings.Contains(err.Error(), "Invalid log level: loud") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !strings.Contains(err.Error(), "dev, serve, info, warn, error") {
		t.Fatalf("expected valid levels in message: %v", err)
	}
}

func TestParseArgsRejectsDanglingFlag(t *testing.T) {
	_, err := ParseArgs([]string{"chat", "--log-level"})
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Missing log level value") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestLevelEchoThreshold(t *testing.T) {
	if LevelDev.EchoThreshold() >= LevelInfo.EchoThreshold() {
		t.Fatalf("dev should echo more than info")
	}
	if LevelServe.EchoThreshold() != LevelError.EchoThreshold() {
		t.Fatalf("serve should echo errors only")
	}
}
