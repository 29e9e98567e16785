package core

import (
	"strings"
	"testing"
)

func TestEventRingWraps(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	for i := 0; i < EventRingSize+5; i++ {
		RecordEvent(EvtChainCut, uint8(i), uint32(i), 0)
	}

	events := Events()
	if len(events) != EventRingSize {
		t.Fatalf("Expected %d events, got %d", EventRingSize, len(events))
	}
	if events[0].ID != 5 {
		t.Errorf("Expected oldest event id 5, got %d", events[0].ID)
	}
	if last := events[len(events)-1]; last.ID != EventRingSize+4 {
		t.Errorf("Expected newest event id %d, got %d", EventRingSize+4, last.ID)
	}
}

func TestEventClock(t *testing.T) {
	ClearEvents()
	defer ClearEvents()
	SetMicros(1000)
	defer SetMicros(0)

	RecordEvent(EvtModeChange, 0, 0, 1)
	AdvanceMicros(250)
	RecordEvent(EvtModeChange, 0, 1, 2)

	events := Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Clock != 1000 || events[1].Clock != 1250 {
		t.Errorf("Expected clocks 1000 and 1250, got %d and %d", events[0].Clock, events[1].Clock)
	}
}

func TestDumpEvents(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordEvent(EvtUnderrun, 3, 7, 0)
	DumpEvents()

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[1], "UNDERRUN!") || !strings.Contains(lines[1], "v1=0x00000007") {
		t.Errorf("Unexpected dump line: %s", lines[1])
	}
}

func TestDebugPrintlnRespectsEnabled(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %v", got)
	}
}

func TestHex32(t *testing.T) {
	if s := Hex32(0xAAAAAAAA); s != "0xaaaaaaaa" {
		t.Errorf("Expected 0xaaaaaaaa, got %s", s)
	}
	if s := Hex32(5); s != "0x00000005" {
		t.Errorf("Expected 0x00000005, got %s", s)
	}
}
