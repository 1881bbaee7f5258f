package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts, exit, _ := parseFlags([]string{"--production", "--watch", "--config=tywa.toml", "--log-level", "debug"}, &stdout, &stderr)

	if exit {
		t.Fatalf("unexpected exit, stderr: %s", stderr.String())
	}
	if !opts.Production || !opts.Watch {
		t.Errorf("Production = %v, Watch = %v; want both true", opts.Production, opts.Watch)
	}
	if opts.ConfigPath != "tywa.toml" {
		t.Errorf("ConfigPath = %q, want tywa.toml", opts.ConfigPath)
	}
	if opts.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", opts.LogLevel)
	}
}

func TestParseFlags_ConfigSeparateValue(t *testing.T) {
	var stdout, stderr bytes.Buffer
	opts, exit, _ := parseFlags([]string{"--config", "package.json"}, &stdout, &stderr)
	if exit || opts.ConfigPath != "package.json" {
		t.Errorf("ConfigPath = %q (exit %v), want package.json", opts.ConfigPath, exit)
	}
}

func TestParseFlags_Exits(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		out  string
	}{
		{"help", []string{"--help"}, 0, "Usage: tywa"},
		{"version", []string{"--version"}, 0, "tywa dev"},
		{"bad log level", []string{"--log-level", "loud"}, 1, "invalid log level"},
		{"unknown flag", []string{"--nope"}, 2, "unknown flag"},
		{"stray argument", []string{"src"}, 2, "unexpected arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			_, exit, code := parseFlags(tt.args, &stdout, &stderr)
			if !exit {
				t.Fatal("expected exit")
			}
			if code != tt.code {
				t.Errorf("code = %d, want %d", code, tt.code)
			}
			if got := stdout.String() + stderr.String(); !strings.Contains(got, tt.out) {
				t.Errorf("output %q does not contain %q", got, tt.out)
			}
		})
	}
}
