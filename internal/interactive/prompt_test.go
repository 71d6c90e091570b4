package interactive

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrompterResponses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   Response
		want  Response
	}{
		{"yes", "y\n", ResponseNo, ResponseYes},
		{"yes long", "YES\n", ResponseNo, ResponseYes},
		{"no", "n\n", ResponseYes, ResponseNo},
		{"quit", "q\n", ResponseYes, ResponseQuit},
		{"empty takes default yes", "\n", ResponseYes, ResponseYes},
		{"empty takes default no", "\n", ResponseNo, ResponseNo},
		{"eof quits", "", ResponseYes, ResponseQuit},
		{"invalid is no", "maybe\n", ResponseYes, ResponseNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			p := NewPrompterWithIO(strings.NewReader(tt.input), output)

			if got := p.prompt(tt.def, "Continue?"); got != tt.want {
				t.Errorf("prompt() = %v, want %v", got, tt.want)
			}
			if !strings.HasPrefix(output.String(), "Continue?") {
				t.Errorf("output = %q, want question first", output.String())
			}
		})
	}
}

func TestPrompterChoicesHint(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("\n\n"), output)

	p.Confirm("First?", true)
	p.Confirm("Second?", false)

	if !strings.Contains(output.String(), "First? [Y/n]") {
		t.Errorf("output missing default-yes hint: %q", output.String())
	}
	if !strings.Contains(output.String(), "Second? [y/N]") {
		t.Errorf("output missing default-no hint: %q", output.String())
	}
}

func TestConfirmUpdate(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("\n"), output)

	if !p.ConfirmUpdate("0.1.0", "0.2.0", "/usr/local/bin/strata") {
		t.Error("ConfirmUpdate() with empty answer should default to yes")
	}
	for _, want := range []string{"0.1.0", "0.2.0", "/usr/local/bin/strata", "Proceed with update?"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output missing %q: %q", want, output.String())
		}
	}
}

func TestConfirmDeclined(t *testing.T) {
	p := NewPrompterWithIO(strings.NewReader("n\n"), &bytes.Buffer{})
	if p.ConfirmUpdate("0.1.0", "0.2.0", "/usr/local/bin/strata") {
		t.Error("ConfirmUpdate() = true after answering no")
	}
}
