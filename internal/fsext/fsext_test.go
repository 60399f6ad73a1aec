// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fsext

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "thing.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if !Exists(dir) || !Exists(file) {
		t.Error("expected dir and file to exist")
	}
	if Exists(filepath.Join(dir, "missing")) {
		t.Error("expected missing path to not exist")
	}

	if !IsDir(dir) {
		t.Error("expected dir to be a directory")
	}
	if IsDir(file) {
		t.Error("expected file to not be a directory")
	}
}

func TestExtAndBase(t *testing.T) {
	if got := Ext("/a/b/c.txt"); got != ".txt" {
		t.Errorf("Ext() = %q, want .txt", got)
	}
	if got := Base("/a/b/c.txt"); got != "c.txt" {
		t.Errorf("Base() = %q, want c.txt", got)
	}
}
