package datamanager

import (
	"testing"

	"repcrep/pkg/primitives"
	"repcrep/pkg/txnerr"
)

func TestReadReturnsNewestVisibleVersion(t *testing.T) {
	dm := New(1)
	if err := dm.Write(2, 10, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dm.Write(2, 20, 5); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dm.Write(2, 30, 10); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cases := []struct {
		startTime primitives.Timestamp
		want      int
	}{
		{0, 10},
		{4, 10},
		{5, 20},
		{9, 20},
		{10, 30},
		{100, 30},
	}
	for _, c := range cases {
		got, err := dm.Read(2, c.startTime)
		if err != nil {
			t.Fatalf("Read(2, %d): %v", c.startTime, err)
		}
		if got != c.want {
			t.Errorf("Read(2, %d) = %d, want %d", c.startTime, got, c.want)
		}
	}
}

func TestReadBeforeAnyVersionFails(t *testing.T) {
	dm := New(1)
	if err := dm.Write(2, 10, 5); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err := dm.Read(2, 1)
	if !txnerr.Is(err, txnerr.KindNoVisibleVersion) {
		t.Fatalf("Read before any version: got %v, want KindNoVisibleVersion", err)
	}
}

func TestReadUnknownVariable(t *testing.T) {
	dm := New(1)
	_, err := dm.Read(5, 10)
	if !txnerr.Is(err, txnerr.KindUnknownVariable) {
		t.Fatalf("Read unknown variable: got %v, want KindUnknownVariable", err)
	}
}

func TestReadWriteWhileDownFails(t *testing.T) {
	dm := New(1)
	if err := dm.Write(2, 10, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dm.Fail()

	if _, err := dm.Read(2, 10); !txnerr.Is(err, txnerr.KindSiteDown) {
		t.Fatalf("Read while down: got %v, want KindSiteDown", err)
	}
	if err := dm.Write(2, 20, 10); !txnerr.Is(err, txnerr.KindSiteDown) {
		t.Fatalf("Write while down: got %v, want KindSiteDown", err)
	}
}

func TestFailTruncatesHistoryToMostRecentRecord(t *testing.T) {
	dm := New(1)
	dm.Write(2, 10, 0)
	dm.Write(2, 20, 5)
	dm.Write(2, 30, 10)

	dm.Fail()
	dm.Recover()

	last, ok := dm.LastCommitTime(2)
	if !ok || last != 10 {
		t.Fatalf("after fail/recover, LastCommitTime(2) = (%d, %v), want (10, true)", last, ok)
	}

	val, ok := dm.CurrentValue(2)
	if !ok || val != 30 {
		t.Fatalf("CurrentValue(2) = (%d, %v), want (30, true)", val, ok)
	}

	// The older versions must be gone; reading far in the past now only
	// sees the truncated single record.
	dm.Write(2, 40, 12)
	got, err := dm.Read(2, 1)
	if err == nil {
		t.Fatalf("Read(2, 1) after truncation unexpectedly succeeded with %d", got)
	}
}

func TestFailIsIdempotent(t *testing.T) {
	dm := New(1)
	dm.Write(2, 10, 0)
	dm.Fail()
	dm.Fail()
	if dm.Status() != Down {
		t.Fatalf("Status() = %v, want Down", dm.Status())
	}
}

func TestRecoverIsIdempotent(t *testing.T) {
	dm := New(1)
	dm.Write(2, 10, 0)
	dm.Recover()
	dm.Recover()
	if dm.Status() != Up {
		t.Fatalf("Status() = %v, want Up", dm.Status())
	}
}

func TestLastVisibleCommitTime(t *testing.T) {
	dm := New(1)
	dm.Write(1, 77, 1)

	ts, ok := dm.LastVisibleCommitTime(1, 3)
	if !ok || ts != 1 {
		t.Fatalf("LastVisibleCommitTime(1, 3) = (%d, %v), want (1, true)", ts, ok)
	}

	_, ok = dm.LastVisibleCommitTime(1, 0)
	if ok {
		t.Fatalf("LastVisibleCommitTime(1, 0) unexpectedly found a version")
	}

	_, ok = dm.LastVisibleCommitTime(9, 100)
	if ok {
		t.Fatalf("LastVisibleCommitTime on unknown variable unexpectedly found a version")
	}
}

func TestKnownVariablesSorted(t *testing.T) {
	dm := New(1)
	dm.Write(5, 1, 0)
	dm.Write(1, 1, 0)
	dm.Write(3, 1, 0)

	got := dm.KnownVariables()
	want := []primitives.VariableID{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("KnownVariables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("KnownVariables() = %v, want %v", got, want)
		}
	}
}
