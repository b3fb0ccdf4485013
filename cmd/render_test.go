package cmd

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testLayout = `version = 1

[output]
width = 64
height = 36
format = "BGRx"
fps = 30
background = 0x102030

[channels.main]
zorder = 0
source = "pattern:bars@32x18"
width = 64
height = 36

[channels.pip]
zorder = 1
source = "pattern:checker@16x16"
x = 40
y = 4
width = 20
height = 20
`

func writeLayout(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte(testLayout), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderCmd(t *testing.T) {
	layoutPath := writeLayout(t)
	outPath := filepath.Join(t.TempDir(), "frame.png")

	cmd := CreateRenderCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", "", "--layout", layoutPath, "--output", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Errorf("frame = %dx%d, want 64x36", b.Dx(), b.Dy())
	}
	if !strings.Contains(stderr.String(), "2 blits") {
		t.Errorf("summary = %q, want 2 blits", stderr.String())
	}
}

func TestRenderCmdBadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("[channels.a]\nsource = \"pattern:plasma\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := CreateRenderCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "", "--layout", path, "--output", "-"})
	if err := cmd.Execute(); err == nil {
		t.Error("render with unknown pattern = nil, want error")
	}
}

func TestLayoutCmdJSON(t *testing.T) {
	layoutPath := writeLayout(t)

	cmd := CreateLayoutCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", "", "--layout", layoutPath, "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	var report layoutReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v: %s", err, stdout.String())
	}
	if len(report.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(report.Channels))
	}

	tests := []struct {
		id     string
		zorder int
		input  string
		fills  bool
	}{
		{"main", 0, "32x18 BGRx", true},
		{"pip", 1, "16x16 BGRx", false},
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := report.Channels[i]
			if got.ID != tt.id || got.ZOrder != tt.zorder {
				t.Errorf("channel = %s z%d, want %s z%d", got.ID, got.ZOrder, tt.id, tt.zorder)
			}
			if got.Input != tt.input {
				t.Errorf("Input = %q, want %q", got.Input, tt.input)
			}
			if got.Regions.TotalFillsOutput != tt.fills {
				t.Errorf("TotalFillsOutput = %t, want %t", got.Regions.TotalFillsOutput, tt.fills)
			}
		})
	}

	// main scales 32x18 to exactly 64x36, so it covers the output
	if report.Result.Cleared {
		t.Error("Cleared = true, want false when a channel fills the output")
	}
}

func TestLayoutCmdTable(t *testing.T) {
	layoutPath := writeLayout(t)

	cmd := CreateLayoutCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", "", "--layout", layoutPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"output: ", "CHANNEL", "main", "pip", "[40,4 - 60,24]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
