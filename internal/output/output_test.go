package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type result struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

func (r result) String() string { return r.Name }

func TestWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatText, "strata\n"},
		{FormatJSON, "{\n  \"name\": \"strata\",\n  \"size\": 3\n}\n"},
		{FormatYAML, "name: strata\nsize: 3\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf, tt.format).Write(result{Name: "strata", Size: 3}); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Write() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if !FormatJSON.IsStructured() || FormatText.IsStructured() {
		t.Error("IsStructured() mismatch")
	}
}

func TestStatus(t *testing.T) {
	var out, errOut bytes.Buffer
	s := NewStatus(&out, &errOut, false, false)

	s.Info("Downloading latest release")
	s.Done("Update complete")
	s.Warn("staged binary left behind")
	s.Error("update", errors.New("permission denied"))
	s.Hint("Run strata update again with sudo")

	// A buffer is not a terminal, so no escape codes are written.
	if strings.Contains(out.String(), "\x1b[") || strings.Contains(errOut.String(), "\x1b[") {
		t.Errorf("unexpected escape codes: %q %q", out.String(), errOut.String())
	}
	wantOut := "==> Downloading latest release\nok Update complete\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}
	for _, want := range []string{"warning: staged binary left behind", "error: update: permission denied", "  Run strata update again with sudo"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("stderr missing %q: %q", want, errOut.String())
		}
	}
}

func TestStatusQuiet(t *testing.T) {
	var out, errOut bytes.Buffer
	s := NewStatus(&out, &errOut, true, false)

	s.Info("hidden")
	s.Done("hidden")
	s.Text("hidden")
	s.Error("fetch", errors.New("boom"))

	if out.Len() != 0 {
		t.Errorf("quiet status wrote to stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("errors must not be silenced: %q", errOut.String())
	}
	if s.Progress("asset.zip") != nil {
		t.Error("quiet Progress() should be nil")
	}
}

func TestStatusProgress(t *testing.T) {
	var out bytes.Buffer
	progress := NewStatus(&out, &bytes.Buffer{}, false, true).Progress("strata-linux.zip")

	progress(1024, 8<<20)
	progress(5<<20, 8<<20)
	progress(8<<20, 8<<20)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("progress lines = %q, want 2", lines)
	}
	if lines[0] != "strata-linux.zip 5.0 MiB / 8.0 MiB (62%)" {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if lines[1] != "strata-linux.zip 8.0 MiB / 8.0 MiB (100%)" {
		t.Errorf("lines[1] = %q", lines[1])
	}
}
