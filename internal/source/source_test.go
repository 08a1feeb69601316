package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain utf8", []byte("Alarm 104A"), "Alarm 104A"},
		{"utf8 bom", []byte("\xEF\xBB\xBFAlarm 104A"), "Alarm 104A"},
		{"latin1", []byte("Temp\xe9rature alarm"), "Température alarm"},
		{"utf8 with stray byte", []byte("Température élevée \xff capteur"), "Température élevée \uFFFD capteur"},
		{"latin1 with several accents", []byte("\xe9t\xe9 \xe0 l'usine"), "été à l'usine"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.in); got != tt.want {
				t.Errorf("Decode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logs", "tool-a.log"), []byte("Alarm 1A has been raised"))
	writeFile(t, filepath.Join(dir, "logs", "nested", "tool-b.TXT"), []byte("Alarm 1B has been raised"))
	writeFile(t, filepath.Join(dir, "logs", "image.png"), []byte{0x89, 0x50})
	writeFile(t, filepath.Join(dir, "single.dat"), []byte("System error"))

	l := NewLoader(nil)
	sources, err := l.Load(context.Background(), []string{
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "single.dat"),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[string]string{
		"tool-a.log": "Alarm 1A has been raised",
		"tool-b.TXT": "Alarm 1B has been raised",
		"single.dat": "System error",
	}
	if len(sources) != len(want) {
		t.Fatalf("loaded %d sources, want %d: %v", len(sources), len(want), IDs(sources))
	}
	for id, text := range want {
		if sources[id] != text {
			t.Errorf("source %q = %q, want %q", id, sources[id], text)
		}
	}
}

func TestLoadDuplicateBaseNames(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "alarm.log")
	b := filepath.Join(dir, "b", "alarm.log")
	writeFile(t, a, []byte("one"))
	writeFile(t, b, []byte("two"))

	sources, err := NewLoader(nil).Load(context.Background(), []string{a, b, a})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %v", IDs(sources))
	}
	if sources[filepath.ToSlash(a)] != "one" || sources[filepath.ToSlash(b)] != "two" {
		t.Errorf("sources should be keyed by full path, got %v", IDs(sources))
	}
}

func TestLoadMissingPathKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.log")
	writeFile(t, good, []byte("Alarm 10 has been raised"))

	sources, err := NewLoader(nil).Load(context.Background(), []string{
		filepath.Join(dir, "missing.log"),
		good,
	})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(err.Error(), "missing.log") {
		t.Errorf("error should name the missing path, got %v", err)
	}
	if sources["ok.log"] == "" {
		t.Error("readable source should still be loaded")
	}
}

func TestLoadStdin(t *testing.T) {
	l := NewLoader(nil)
	l.stdin = strings.NewReader("Alarm 2B has been terminated\n")

	sources, err := l.Load(context.Background(), []string{StdinPath})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sources["stdin"] != "Alarm 2B has been terminated\n" {
		t.Errorf("stdin source = %q", sources["stdin"])
	}
}

func TestCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.alm"), []byte("Alarm 10 has been raised"))
	writeFile(t, filepath.Join(dir, "y.log"), []byte("Alarm 11 has been raised"))

	sources, err := NewLoader([]string{".ALM"}).Load(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sources) != 1 || sources["x.alm"] == "" {
		t.Errorf("expected only x.alm, got %v", IDs(sources))
	}
}

func TestCommandRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	c := Command{
		Name:    "remote-tool",
		Args:    []string{"sh", "-c", "printf 'Alarm 3C has been raised\\nAlarm 3C has been terminated\\n'"},
		Timeout: 5 * time.Second,
	}
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Alarm 3C has been raised\nAlarm 3C has been terminated\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCommandNameCollision(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	sources := map[string]string{"tool-07": "from file\n"}
	RunCommands(context.Background(), []Command{
		{Name: "tool-07", Args: []string{"sh", "-c", "echo first"}},
		{Name: "tool-07", Args: []string{"sh", "-c", "echo second"}},
	}, sources)

	want := map[string]string{
		"tool-07":       "from file\n",
		"cmd:tool-07":   "first\n",
		"cmd:tool-07#2": "second\n",
	}
	if len(sources) != len(want) {
		t.Fatalf("sources = %v, want ids %v", IDs(sources), want)
	}
	for id, text := range want {
		if sources[id] != text {
			t.Errorf("source %q = %q, want %q", id, sources[id], text)
		}
	}
}

func TestCommandFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	sources := map[string]string{}
	RunCommands(context.Background(), []Command{
		{Name: "bad", Args: []string{"sh", "-c", "echo partial; exit 3"}},
		{Name: "empty"},
		{Name: "good", Args: []string{"sh", "-c", "echo System error"}},
	}, sources)

	if _, ok := sources["bad"]; ok {
		t.Error("failing command should not produce a source")
	}
	if _, ok := sources["empty"]; ok {
		t.Error("command without args should not produce a source")
	}
	if sources["good"] != "System error\n" {
		t.Errorf("good source = %q", sources["good"])
	}
}
