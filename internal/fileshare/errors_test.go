package fileshare

import (
	"errors"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")

	if err := storageErr("writing blob", cause); !errors.Is(err, ErrStorageIO) || !errors.Is(err, cause) {
		t.Errorf("storageErr() = %v, want ErrStorageIO wrapping cause", err)
	}
	if err := metadataErr("inserting", cause); !errors.Is(err, ErrMetadataIO) || !errors.Is(err, cause) {
		t.Errorf("metadataErr() = %v, want ErrMetadataIO wrapping cause", err)
	}

	t.Run("conflict is metadata", func(t *testing.T) {
		if !errors.Is(ErrConflict, ErrMetadataIO) {
			t.Error("ErrConflict does not match ErrMetadataIO")
		}
	})

	t.Run("invalid move passes through", func(t *testing.T) {
		err := metadataErr("moving directory", ErrInvalidMove)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("metadataErr() = %v, want ErrInvalidMove", err)
		}
		if errors.Is(err, ErrMetadataIO) {
			t.Errorf("metadataErr() = %v, invalid move must not read as metadata i/o", err)
		}
	})

	t.Run("no double wrap", func(t *testing.T) {
		inner := storageErr("a", cause)
		if got := storageErr("b", inner).Error(); got != "b: storage i/o: a: boom" {
			t.Errorf("storageErr() = %q", got)
		}
	})
}
