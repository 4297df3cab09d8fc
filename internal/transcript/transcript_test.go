package transcript

import (
	"testing"
	"time"
)

func TestStore_InterimReplacedByFinal(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "hel", IsFinal: false})
	s.Append(Entry{Role: RoleUser, Text: "hello", IsFinal: false})
	s.Append(Entry{Role: RoleUser, Text: "hello there", IsFinal: true})

	entries := s.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after reconciliation, got %d", len(entries))
	}
	if entries[0].Text != "hello there" || !entries[0].IsFinal {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestStore_FinalEntriesAccumulate(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "first", IsFinal: true})
	s.Append(Entry{Role: RoleUser, Text: "second", IsFinal: true})

	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
}

func TestStore_AgentEntryDoesNotDisturbInterim(t *testing.T) {
	// An agent utterance arriving between a user interim and its final form
	// must not leave the stale interim behind.
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "how do", IsFinal: false})
	s.Append(Entry{Role: RoleAgent, Text: "Go on.", IsFinal: true})
	s.Append(Entry{Role: RoleUser, Text: "how do I start", IsFinal: true})

	entries := s.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleAgent || entries[1].Text != "how do I start" {
		t.Errorf("unexpected history: %+v", entries)
	}
}

func TestStore_InterimUpdatedInPlaceAcrossAgentEntry(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "what", IsFinal: false})
	s.Append(Entry{Role: RoleAgent, Text: "Mm-hm.", IsFinal: true})
	s.Append(Entry{Role: RoleUser, Text: "what time", IsFinal: false})

	entries := s.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "what time" || entries[0].IsFinal {
		t.Errorf("interim not updated in place: %+v", entries[0])
	}
}

func TestStore_InterleavedConversation(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "hi", IsFinal: true})
	s.Append(Entry{Role: RoleAgent, Text: "Hello, how can I help?", IsFinal: true})
	s.Append(Entry{Role: RoleUser, Text: "what is", IsFinal: false})
	s.Append(Entry{Role: RoleUser, Text: "what is the weather", IsFinal: true})
	s.Append(Entry{Role: RoleAgent, Text: "Sunny.", IsFinal: true})

	entries := s.All()
	want := []string{"hi", "Hello, how can I help?", "what is the weather", "Sunny."}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, text := range want {
		if entries[i].Text != text {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].Text, text)
		}
	}
}

func TestStore_EntriesTimestamped(t *testing.T) {
	s := NewStore()
	before := time.Now()
	s.Append(Entry{Role: RoleUser, Text: "hi", IsFinal: true})

	e := s.All()[0]
	if e.Timestamp.IsZero() || e.Timestamp.Before(before) {
		t.Errorf("entry not stamped on arrival: %v", e.Timestamp)
	}

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Append(Entry{Role: RoleAgent, Text: "hello", IsFinal: true, Timestamp: fixed})
	if got := s.All()[1].Timestamp; !got.Equal(fixed) {
		t.Errorf("explicit timestamp must be preserved, got %v", got)
	}
}

func TestStore_FinalCarriesOwnTimestamp(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Append(Entry{Role: RoleUser, Text: "what", IsFinal: false, Timestamp: t0})
	s.Append(Entry{Role: RoleUser, Text: "what time", IsFinal: true, Timestamp: t0.Add(time.Second)})

	entries := s.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 reconciled entry, got %d", len(entries))
	}
	if !entries[0].Timestamp.Equal(t0.Add(time.Second)) {
		t.Errorf("final form must keep its own timestamp, got %v", entries[0].Timestamp)
	}
}

func TestStore_AllReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleUser, Text: "one", IsFinal: true})

	snapshot := s.All()
	s.Append(Entry{Role: RoleUser, Text: "two", IsFinal: true})

	if len(snapshot) != 1 {
		t.Error("snapshot must not grow with later appends")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(Entry{Role: RoleAgent, Text: "bye", IsFinal: true})
	s.Clear()
	if s.Len() != 0 {
		t.Error("expected empty store after Clear")
	}
}
