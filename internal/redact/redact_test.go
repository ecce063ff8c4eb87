package redact

import (
	"strings"
	"testing"
)

func TestRedact_Email(t *testing.T) {
	t.Parallel()

	got := Redact("contact admin@corp.com")
	if !strings.Contains(got, EmailToken) {
		t.Errorf("Redact = %q, want it to contain %q", got, EmailToken)
	}
	if strings.Contains(got, "admin@corp.com") {
		t.Errorf("Redact = %q, still contains the address", got)
	}
}

func TestRedact_IPv4(t *testing.T) {
	t.Parallel()

	got := Redact("host 192.168.1.102")
	if got != "host INTERNAL_NET.102" {
		t.Errorf("Redact = %q, want %q", got, "host INTERNAL_NET.102")
	}
	if strings.Contains(got, "192.168.1") {
		t.Errorf("Redact = %q, leaked leading octets", got)
	}
}

func TestRedact_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no pii", "whoami /all", "whoami /all"},
		{"email then ip", "mail bob@x.io from 10.0.5.5", "mail [EMAIL_REDACTED] from INTERNAL_NET.5"},
		{"email on ip domain", "svc@10.1.1.1", "[EMAIL_REDACTED]"},
		{"trailing period", "seen at 10.0.0.7.", "seen at INTERNAL_NET.7."},
		{"multiple", "10.0.0.1 -> 10.0.0.2", "INTERNAL_NET.1 -> INTERNAL_NET.2"},
		{"in url", "curl http://172.16.4.20:8080/x", "curl http://INTERNAL_NET.20:8080/x"},
		{"five groups untouched", "ver 1.2.3.4.5", "ver 1.2.3.4.5"},
		{"glued to word", "v1.2.3.4", "v1.2.3.4"},
		{"long octet", "1234.1.1.1", "1234.1.1.1"},
		{"three groups", "release 2.4.1", "release 2.4.1"},
		{"already masked", "INTERNAL_NET.102", "INTERNAL_NET.102"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedact_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"plain text",
		"contact admin@corp.com",
		"host 192.168.1.102",
		"1.2.3.4.5.6.7",
		"a.@1.2.3.4 x @1.2.3.4 (@9.9.9.9)",
		"user+tag@mail.example.co.uk pinged 10.0.0.1 and 10.0.0.256",
		"INTERNAL_NET.1.2.3.4",
		"[EMAIL_REDACTED]@1.1.1.1",
		"mimikatz.exe privilege::debug 10.0.5.5",
		"curl -X POST https://api.backup.uae -u system_service@corp.ae",
		"1.1.1.1.",
		"..1.1.1.1..",
	}

	for _, in := range inputs {
		once := Redact(in)
		twice := Redact(once)
		if once != twice {
			t.Errorf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestContainsPII(t *testing.T) {
	t.Parallel()

	if !ContainsPII(Redact("ping ops@corp.com")) {
		t.Error("expected redacted email to be flagged")
	}
	if !ContainsPII(Redact("ping 10.2.3.4")) {
		t.Error("expected masked ip to be flagged")
	}
	if ContainsPII(Redact("ls -la")) {
		t.Error("expected clean text not to be flagged")
	}
}
