package commands

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTone(t *testing.T, path string, freq float64, n int) {
	t.Helper()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, samples)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(32000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestModelInitAndTranscribe(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "symbols.txt")
	if err := os.WriteFile(vocabPath, []byte("a\nb\n<space>\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	modelDir := filepath.Join(dir, "model")

	out, err := execute(t, "model", "init", "--vocab", vocabPath, "--out", modelDir,
		"--hidden", "16", "--context", "1", "--layers", "1")
	if err != nil {
		t.Fatalf("model init: %v", err)
	}
	if !strings.Contains(out, "193 features, 4 classes") {
		t.Errorf("model init output = %q", out)
	}
	for _, name := range []string{"model.gob", "vocabulary.txt"} {
		if _, err := os.Stat(filepath.Join(modelDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeTone(t, a, 440, 8000)
	writeTone(t, b, 1000, 16000)

	out, err = execute(t, "transcribe", "--model-dir", modelDir, a, b)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n"); len(lines) != 2 {
		t.Errorf("transcribe printed %d lines, want 2: %q", len(lines), out)
	}

	_, err = execute(t, "transcribe", "--model-dir", modelDir, a, filepath.Join(dir, "missing.wav"))
	if err == nil {
		t.Error("transcribe with a missing file: expected error")
	}
}

func TestEval(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "symbols.txt")
	if err := os.WriteFile(vocabPath, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	modelDir := filepath.Join(dir, "model")
	if _, err := execute(t, "model", "init", "--vocab", vocabPath, "--out", modelDir,
		"--hidden", "8", "--context", "0", "--layers", "1"); err != nil {
		t.Fatalf("model init: %v", err)
	}
	writeTone(t, filepath.Join(dir, "x.wav"), 300, 4000)
	manifest := filepath.Join(dir, "manifest.tsv")
	if err := os.WriteFile(manifest, []byte("# test set\nx.wav\tab\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "eval", "--model-dir", modelDir, "--manifest", manifest)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	for _, want := range []string{"utterances: 1", "CER:", "WER:"} {
		if !strings.Contains(out, want) {
			t.Errorf("eval output missing %q: %q", want, out)
		}
	}
}

func TestReap(t *testing.T) {
	dir := t.TempDir()
	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	fresh := strconv.FormatInt(time.Now().Unix(), 10)
	for _, name := range []string{old + "_a.wav", fresh + "_b.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := execute(t, "reap", "--dir", dir, "--ttl", "10m")
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if !strings.Contains(out, "deleted 1, failed 0, skipped 1") {
		t.Errorf("reap output = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("version printed nothing")
	}
}
