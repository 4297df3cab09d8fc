package verr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindTokenAcquisitionFailed, "broker said no")
	if KindOf(err) != KindTokenAcquisitionFailed {
		t.Errorf("got kind %v", KindOf(err))
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("unclassified errors must report KindUnknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil must report KindUnknown")
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := New(KindTimeout, "deadline hit")
	outer := fmt.Errorf("connect: %w", inner)
	if KindOf(outer) != KindTimeout {
		t.Error("kind must survive fmt.Errorf wrapping")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindChannelOpenFailed, "failed to open channel", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause must be reachable via errors.Is")
	}
	if !Is(err, KindChannelOpenFailed) {
		t.Error("Is must match the attached kind")
	}

	if Wrap(KindTimeout, "ignored", nil) != nil {
		t.Error("wrapping a nil cause must return nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindDecodeFailed, "bad chunk", errors.New("odd length"))
	want := "decode_failed: bad chunk: odd length"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
