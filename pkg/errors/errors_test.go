package errors

import (
	"fmt"
	"io"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrap_KeepsChain(t *testing.T) {
	err := Wrap(New(ErrCaptureFailed, "empty frame"), "camera")
	if !Is(err, ErrCaptureFailed) {
		t.Errorf("expected ErrCaptureFailed in chain: %v", err)
	}
	if err.Error() != "camera: capture failed: empty frame" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestMark_BothMatchable(t *testing.T) {
	err := Mark(ErrConversionFailed, io.ErrUnexpectedEOF)
	if !Is(err, ErrConversionFailed) {
		t.Error("expected ErrConversionFailed")
	}
	if !Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cause to stay matchable")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{io.EOF, KindUnknown},
		{ErrInvalidMediaType, KindInvalidMediaType},
		{New(ErrImageTooLarge, "big.png"), KindImageTooLarge},
		{fmt.Errorf("outer: %w", New(ErrInvalidResponseShape, "missing contents")), KindInvalidResponseShape},
		{Mark(ErrCameraUnavailable, io.EOF), KindCameraUnavailable},
		{Wrap(ErrBusy, "select"), KindBusy},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
