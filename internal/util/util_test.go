// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"zero max", "hello", 0, ""},
		{"negative max", "hello", -1, ""},
		{"max too small for ellipsis", "hello", 2, "he"},
		{"multibyte preserved", "日本語のテキスト", 5, "日本..."},
		{"empty input", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.maxRunes)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	if got := TruncateRunesNoEllipsis("hello world", 5); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if got := TruncateRunesNoEllipsis("héllo", 2); got != "hé" {
		t.Errorf("got %q, want %q", got, "hé")
	}
	if got := TruncateRunesNoEllipsis("short", 10); got != "short" {
		t.Errorf("got %q, want %q", got, "short")
	}
}

func TestTruncateWidth(t *testing.T) {
	// CJK characters occupy two columns each.
	if got := TruncateWidth("日本語", 4); StringWidth(got) > 4 {
		t.Errorf("TruncateWidth produced %q with width %d, want <= 4", got, StringWidth(got))
	}
	if got := TruncateWidth("abc", 10); got != "abc" {
		t.Errorf("got %q, want unmodified input", got)
	}
	if got := TruncateWidth("abc", 0); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRuneLen(t *testing.T) {
	if got := RuneLen("héllo"); got != 5 {
		t.Errorf("RuneLen(héllo) = %d, want 5", got)
	}
	if got := RuneLen(""); got != 0 {
		t.Errorf("RuneLen of empty string = %d, want 0", got)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	data := []byte(`{"ok":true}`)
	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("content = %q, want %q", got, data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	// Overwrite must replace the old content completely.
	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "x" {
		t.Errorf("after overwrite content = %q, want %q", got, "x")
	}

	// No temp files may remain in the target directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "out.json" {
			t.Errorf("leftover file in target dir: %s", e.Name())
		}
	}
}
