package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonSegmentTranscribe)
	if Reason(err) != ReasonSegmentTranscribe {
		t.Fatalf("expected reason %s, got %s", ReasonSegmentTranscribe, Reason(err))
	}
	if !HasReason(err, ReasonSegmentTranscribe) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonDeviceUnavailable)
	second := Wrap(first, ReasonSegmentTranscribe)
	if Reason(second) != ReasonDeviceUnavailable {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonNil(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
	if Wrap(nil, ReasonDeviceUnderrun) != nil {
		t.Fatalf("expected nil wrap for nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
