package trigger

import "testing"

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()
	key := Key(3, 123456789)
	if key != "3_123456789" {
		t.Fatalf("key = %q", key)
	}
	ordinal, userID, err := ParseKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if ordinal != 3 || userID != 123456789 {
		t.Fatalf("parsed %d/%d", ordinal, userID)
	}
}

func TestParseKeyMalformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "3", "_5", "3_", "a_5", "3_b", "3-5"} {
		if _, _, err := ParseKey(in); err == nil {
			t.Errorf("ParseKey(%q): want error", in)
		}
	}
}
