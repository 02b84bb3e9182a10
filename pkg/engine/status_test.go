package engine

import "testing"

func TestStatusSetOnce(t *testing.T) {
	s := NewStatusSet("a", "b")

	if got := s.State("a"); got != StateNotAttempted {
		t.Fatalf("initial state = %s", got)
	}
	if err := s.Set("a", StateInstalled, "done"); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := s.Set("a", StateFailed, "again"); err == nil {
		t.Error("second write to the same component must be rejected")
	}
	if s.State("a") != StateInstalled || s.Reason("a") != "done" {
		t.Errorf("first write must win: %s %q", s.State("a"), s.Reason("a"))
	}
}

func TestStatusSetUnknownComponent(t *testing.T) {
	s := NewStatusSet("a")
	if err := s.Set("ghost", StateInstalled, ""); err == nil {
		t.Error("unknown component must be rejected")
	}
	if err := s.Set("a", ComponentState("bogus"), ""); err == nil {
		t.Error("invalid state must be rejected")
	}
}

func TestStatusSetCounts(t *testing.T) {
	s := NewStatusSet("a", "b", "c")
	if err := s.Set("a", StateInstalled, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", StateSkipped, ""); err != nil {
		t.Fatal(err)
	}

	counts := s.Counts()
	if counts[StateInstalled] != 1 || counts[StateSkipped] != 1 || counts[StateNotAttempted] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestStageValidation(t *testing.T) {
	for _, stage := range []Stage{StageInit, StageSafetyChecks, StageProvisioning,
		StageResolution, StageInstallation, StageCleanup, StageDone, StageAborted} {
		if err := stage.Validate(); err != nil {
			t.Errorf("stage %s invalid: %v", stage, err)
		}
	}
	if err := Stage("warp").Validate(); err == nil {
		t.Error("unknown stage must be invalid")
	}
	if !StageDone.IsTerminal() || !StageAborted.IsTerminal() || StageInit.IsTerminal() {
		t.Error("terminal stage classification wrong")
	}
}
