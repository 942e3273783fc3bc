package logger

import "testing"

func TestScrubRedactsCredentialKeys(t *testing.T) {
	got := scrub([]interface{}{"jwt_token", "abc", "user_id", 7, "password", "hunter2"})
	if got[1] != "[REDACTED]" {
		t.Fatalf("token value not redacted: %v", got[1])
	}
	if got[3] != 7 {
		t.Fatalf("user_id should pass through, got %v", got[3])
	}
	if got[5] != "[REDACTED]" {
		t.Fatalf("password value not redacted: %v", got[5])
	}
}

func TestScrubTruncatesImagePayloads(t *testing.T) {
	got := scrub([]interface{}{"frame", "data:image/jpeg;base64,AAAA"})
	if got[1] != "[image 27 bytes]" {
		t.Fatalf("unexpected frame value %v", got[1])
	}
}

func TestScrubKeepsDanglingKey(t *testing.T) {
	got := scrub([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("unexpected output %v", got)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "test", "dev", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("service", "test").Debug("hello", "k", "v")
	}
}
