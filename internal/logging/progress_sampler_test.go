package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.ShouldLog(0, "a.flac") {
		t.Fatal("first reading should log")
	}
	if s.ShouldLog(10, "a.flac") {
		t.Fatal("reading inside the same bucket should not log")
	}
	if !s.ShouldLog(26, "a.flac") {
		t.Fatal("crossing a bucket should log")
	}
	if !s.ShouldLog(150, "a.flac") {
		t.Fatal("completion should log once")
	}
	if s.ShouldLog(100, "a.flac") {
		t.Fatal("completion should not repeat")
	}
	if !s.ShouldLog(0, "b.flac") {
		t.Fatal("new label should log")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 10 {
		t.Fatalf("bucketSize = %v, want 10", s.bucketSize)
	}
	if !s.ShouldLog(-1, "x") {
		t.Fatal("label change should log even without percent")
	}
	if s.ShouldLog(-1, "x") {
		t.Fatal("unknown percent should not log without a label change")
	}
	s.Reset()
	if !s.ShouldLog(-1, "x") {
		t.Fatal("reset should clear the label")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "x") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}
