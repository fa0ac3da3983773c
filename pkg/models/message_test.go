package models

import "testing"

func TestNewMessage(t *testing.T) {
	m := NewMessage(MsgTaskAssigned, CoordinatorName, "coder")

	if m.Type != MsgTaskAssigned || m.Sender != CoordinatorName || m.Recipient != "coder" {
		t.Errorf("unexpected message %+v", m)
	}
	if m.MsgID == "" {
		t.Error("message ID should be generated")
	}
	if m.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if other := NewMessage(MsgTaskAssigned, CoordinatorName, "coder"); other.MsgID == m.MsgID {
		t.Error("message IDs should be unique")
	}
}

func TestMetadataReaders(t *testing.T) {
	m := NewMessage(MsgTaskComplete, "coder", CoordinatorName)
	m.Metadata = map[string]any{
		"tokens":   int64(42),
		"count":    7,
		"elapsed":  1.5,
		"agent_id": "coder-abc",
		"flag":     true,
		"tags":     []string{"a", "b"},
		"anytags":  []any{"c", 3, "d"},
	}

	if got := m.MetaInt64("tokens"); got != 42 {
		t.Errorf("MetaInt64(tokens) = %d", got)
	}
	if got := m.MetaInt64("count"); got != 7 {
		t.Errorf("MetaInt64(count) = %d", got)
	}
	if got := m.MetaFloat("elapsed"); got != 1.5 {
		t.Errorf("MetaFloat(elapsed) = %v", got)
	}
	if got := m.MetaString("agent_id"); got != "coder-abc" {
		t.Errorf("MetaString(agent_id) = %q", got)
	}
	if !m.MetaBool("flag") {
		t.Error("MetaBool(flag) should be true")
	}
	if got := m.MetaStrings("tags"); len(got) != 2 || got[0] != "a" {
		t.Errorf("MetaStrings(tags) = %v", got)
	}
	// []any values keep only the strings.
	if got := m.MetaStrings("anytags"); len(got) != 2 || got[1] != "d" {
		t.Errorf("MetaStrings(anytags) = %v", got)
	}

	// Missing keys return zero values.
	if m.MetaInt64("missing") != 0 || m.MetaString("missing") != "" ||
		m.MetaFloat("missing") != 0 || m.MetaBool("missing") || m.MetaStrings("missing") != nil {
		t.Error("missing keys should return zero values")
	}
}
