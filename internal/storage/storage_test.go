package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := OpenMem()
	defer s.Close()

	ok, err := s.Exists(ctx, "5/7.png")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("empty store reported a tile present")
	}

	if err := s.Write(ctx, "5/7.png", []byte("png-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ok, err = s.Exists(ctx, "5/7.png")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatal("written tile not reported present")
	}

	data, err := s.Read(ctx, "5/7.png")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("unexpected bytes: %q", data)
	}
}

func TestOpenDirWritesNestedFiles(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "tiles")

	s, err := OpenDir(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Write(ctx, "1023/512.png", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "1023", "512.png")); err != nil {
		t.Errorf("expected tile file on disk: %v", err)
	}
}
