package main

import (
	"strings"
	"testing"
)

func TestParseIssueID(t *testing.T) {
	tests := []struct {
		name        string
		arg         string
		want        int
		wantErr     bool
		errContains string
	}{
		{
			name: "valid id",
			arg:  "42",
			want: 42,
		},
		{
			name: "large id",
			arg:  "123456",
			want: 123456,
		},
		{
			name:        "zero",
			arg:         "0",
			wantErr:     true,
			errContains: "positive",
		},
		{
			name:        "negative",
			arg:         "-3",
			wantErr:     true,
			errContains: "positive",
		},
		{
			name:        "not a number",
			arg:         "abc",
			wantErr:     true,
			errContains: "invalid issue id",
		},
		{
			name:        "empty",
			arg:         "",
			wantErr:     true,
			errContains: "invalid issue id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIssueID(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseIssueID(%q) expected error, got nil", tt.arg)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("parseIssueID(%q) error = %q, want it to contain %q", tt.arg, err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseIssueID(%q) unexpected error: %v", tt.arg, err)
			}
			if got != tt.want {
				t.Errorf("parseIssueID(%q) = %d, want %d", tt.arg, got, tt.want)
			}
		})
	}
}

func TestIssueCmdRequiresOneArg(t *testing.T) {
	if err := issueCmd.Args(issueCmd, []string{}); err == nil {
		t.Error("issue command accepted zero args")
	}
	if err := issueCmd.Args(issueCmd, []string{"1", "2"}); err == nil {
		t.Error("issue command accepted two args")
	}
	if err := issueCmd.Args(issueCmd, []string{"1"}); err != nil {
		t.Errorf("issue command rejected a single arg: %v", err)
	}
}

func TestProjectCmdRequiresOneArg(t *testing.T) {
	if err := projectCmd.Args(projectCmd, []string{}); err == nil {
		t.Error("project command accepted zero args")
	}
	if err := projectCmd.Args(projectCmd, []string{"demo"}); err != nil {
		t.Errorf("project command rejected a single arg: %v", err)
	}
}
