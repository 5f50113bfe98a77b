package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "conta-arbi", "marco.xlsx"))
	writeFile(t, filepath.Join(root, "conta-arbi", "abril.csv"))
	writeFile(t, filepath.Join(root, "conta-itau", "marco.ofx"))
	writeFile(t, filepath.Join(root, "conta-itau", "notas.txt")) // ignored
	writeFile(t, filepath.Join(root, "solto.qfx"))               // no nickname

	results, err := New(root).Scan()
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	byFile := make(map[string]string)
	for _, r := range results {
		byFile[filepath.Base(r.Path)] = r.AccountNickname
	}

	want := map[string]string{
		"marco.xlsx": "conta-arbi",
		"abril.csv":  "conta-arbi",
		"marco.ofx":  "conta-itau",
		"solto.qfx":  "",
	}
	for file, nickname := range want {
		if byFile[file] != nickname {
			t.Errorf("nickname for %s = %q, want %q", file, byFile[file], nickname)
		}
	}

	var names []string
	for name := range byFile {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) != 4 {
		t.Errorf("unexpected file set: %v", names)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := New("/nonexistent-root-dir").Scan(); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestIsStatementFile(t *testing.T) {
	s := New(".")
	for _, path := range []string{"a.xlsx", "a.XLS", "a.csv", "a.ofx", "a.QFX"} {
		if !s.isStatementFile(path) {
			t.Errorf("isStatementFile(%q) = false, want true", path)
		}
	}
	for _, path := range []string{"a.txt", "a.pdf", "a"} {
		if s.isStatementFile(path) {
			t.Errorf("isStatementFile(%q) = true, want false", path)
		}
	}
}
