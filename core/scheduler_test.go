package core

import "testing"

func TestSoftTimerOrder(t *testing.T) {
	var s SoftTimers
	var fired []uint32

	mk := func(period uint32) *SoftTimer {
		return &SoftTimer{Period: period, Handler: func(st *SoftTimer) { fired = append(fired, st.Period) }}
	}
	a, b, c := mk(30), mk(10), mk(20)
	s.Start(a, 0)
	s.Start(b, 0)
	s.Start(c, 0)

	for now := uint32(1); now <= 30; now++ {
		s.Dispatch(now)
	}

	want := []uint32{10, 20, 30}
	if len(fired) != len(want) {
		t.Fatalf("Expected %d firings, got %v", len(want), fired)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("Firing %d: expected %d, got %d", i, want[i], fired[i])
		}
	}
	if a.Active() || b.Active() || c.Active() {
		t.Error("One-shot timers still armed")
	}
}

func TestSoftTimerPeriodic(t *testing.T) {
	var s SoftTimers
	count := 0
	timer := &SoftTimer{Period: 500, Mode: TimerPeriodic, Handler: func(*SoftTimer) { count++ }}
	s.Start(timer, 0)

	for now := uint32(1); now <= 2600; now++ {
		s.Dispatch(now)
	}
	if count != 5 {
		t.Errorf("Expected 5 firings, got %d", count)
	}
	if r := s.Remaining(timer, 2600); r != 400 {
		t.Errorf("Expected 400ms remaining, got %d", r)
	}
}

func TestSoftTimerStopAndRestart(t *testing.T) {
	var s SoftTimers
	count := 0
	timer := &SoftTimer{Period: 10, Handler: func(*SoftTimer) { count++ }}

	s.Start(timer, 0)
	s.Stop(timer)
	s.Dispatch(20)
	if count != 0 {
		t.Error("Stopped timer fired")
	}
	if s.Remaining(timer, 0) != 0 {
		t.Error("Stopped timer reports time remaining")
	}

	s.Start(timer, 0)
	s.Start(timer, 5)
	s.Dispatch(10)
	if count != 0 {
		t.Error("Restarted timer fired at old deadline")
	}
	s.Dispatch(15)
	if count != 1 {
		t.Errorf("Expected 1 firing, got %d", count)
	}
}

func TestSoftTimerAcrossWrap(t *testing.T) {
	var s SoftTimers
	fired := false
	timer := &SoftTimer{Period: 20, Handler: func(*SoftTimer) { fired = true }}
	s.Start(timer, 0xFFFFFFF0)

	s.Dispatch(0xFFFFFFFF)
	if fired {
		t.Error("Fired before deadline")
	}
	s.Dispatch(4)
	if !fired {
		t.Error("Did not fire after wrap")
	}
}

func TestTimeBaseDrivesTimers(t *testing.T) {
	tb := NewTimeBase(&mockTickTimer{apb1Div: 2})
	tb.Init(72000000)

	toggles := 0
	led := &SoftTimer{Period: 500, Mode: TimerPeriodic, Handler: func(*SoftTimer) { toggles++ }}
	tb.StartTimer(led)
	advance(tb, 2000)

	if toggles != 4 {
		t.Errorf("Expected 4 toggles, got %d", toggles)
	}
}
