package blobstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"fileshare/internal/fileshare"
)

// runContractTests exercises the behavior every BlobStore must share.
func runContractTests(t *testing.T, newStore func(t *testing.T) fileshare.BlobStore) {
	ctx := context.Background()

	t.Run("write then open returns the same bytes", func(t *testing.T) {
		s := newStore(t)

		data := make([]byte, 1024)
		if _, err := rand.Read(data); err != nil {
			t.Fatal(err)
		}

		path, n, err := s.Write(ctx, "id-1.bin", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != int64(len(data)) {
			t.Errorf("Write() size = %d, want %d", n, len(data))
		}

		if got := readBlob(t, s, path); !bytes.Equal(got, data) {
			t.Error("Open() content differs from written content")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		s := newStore(t)

		path, n, err := s.Write(ctx, "id-empty", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != 0 {
			t.Errorf("Write() size = %d, want 0", n)
		}
		if got := readBlob(t, s, path); len(got) != 0 {
			t.Errorf("Open() returned %d bytes, want 0", len(got))
		}
	})

	t.Run("remove then open reports not found", func(t *testing.T) {
		s := newStore(t)

		path, _, err := s.Write(ctx, "id-2.txt", bytes.NewReader([]byte("bye")))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if err := s.Remove(ctx, path); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		if _, err := s.Open(ctx, path); !errors.Is(err, fileshare.ErrBlobNotFound) {
			t.Errorf("Open() after Remove error = %v, want ErrBlobNotFound", err)
		}
		if err := s.Remove(ctx, path); !errors.Is(err, fileshare.ErrBlobNotFound) {
			t.Errorf("second Remove() error = %v, want ErrBlobNotFound", err)
		}
	})

	t.Run("list returns written blobs", func(t *testing.T) {
		s := newStore(t)

		want := map[string]string{}
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("id-%d.dat", i)
			path, _, err := s.Write(ctx, name, bytes.NewReader([]byte{byte(i)}))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			want[path] = name
		}

		blobs, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(blobs) != len(want) {
			t.Fatalf("List() returned %d blobs, want %d", len(blobs), len(want))
		}
		for _, b := range blobs {
			name, ok := want[b.Path]
			if !ok {
				t.Errorf("List() returned unexpected path %q", b.Path)
			}
			if b.Name != name {
				t.Errorf("List() path %q has Name %q, want %q", b.Path, b.Name, name)
			}
			if b.ModifiedAt.IsZero() {
				t.Errorf("List() path %q has zero ModifiedAt", b.Path)
			}
		}
	})

	t.Run("rejects names with separators", func(t *testing.T) {
		s := newStore(t)

		for _, name := range []string{"", "..", "a/b", `a\b`, "a\x00b"} {
			if _, _, err := s.Write(ctx, name, bytes.NewReader([]byte("x"))); err == nil {
				t.Errorf("Write(%q) error = nil, want error", name)
			}
		}
	})

	t.Run("concurrent writes", func(t *testing.T) {
		s := newStore(t)

		const n = 20
		paths := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				path, _, err := s.Write(ctx, fmt.Sprintf("id-%d", i), bytes.NewReader([]byte(fmt.Sprintf("content-%d", i))))
				if err != nil {
					t.Errorf("Write(%d) error = %v", i, err)
					return
				}
				paths[i] = path
			}(i)
		}
		wg.Wait()

		for i, path := range paths {
			if path == "" {
				continue
			}
			if got, want := string(readBlob(t, s, path)), fmt.Sprintf("content-%d", i); got != want {
				t.Errorf("blob %d = %q, want %q", i, got, want)
			}
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		s := newStore(t)
		if err := s.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func readBlob(t *testing.T, s fileshare.BlobStore, path string) []byte {
	t.Helper()

	rc, err := s.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %q: %v", path, err)
	}
	return data
}
