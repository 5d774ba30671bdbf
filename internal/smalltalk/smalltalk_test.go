package smalltalk

import "testing"

func TestMatcher_Default(t *testing.T) {
	m := Default()
	tests := []struct {
		name   string
		input  string
		phrase string // empty means no match
	}{
		{"greeting", "hi", "hi"},
		{"uppercase", "HELLO there", "hello"},
		{"punctuation", "hey!", "hey"},
		{"inside word", "I think Kohli is great", ""},
		{"prefix of word", "history of centuries", ""},
		{"thank you as unit", "thank you so much", "thank you"},
		{"thanks", "thanks a lot", "thanks"},
		{"thank alone", "thank", ""},
		{"table order wins", "bye hello", "hello"},
		{"goodbye not bye", "goodbye", "goodbye"},
		{"small talk with player", "hi, how many tests does Virat Kohli have?", "hi"},
		{"plain query", "How many ODI hundreds does Virat Kohli have?", ""},
	}
	replies := map[string]string{}
	for _, e := range DefaultEntries {
		replies[e.Phrase] = e.Reply
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := m.Match(tc.input)
			if tc.phrase == "" {
				if ok {
					t.Errorf("Match(%q) = %q, want no match", tc.input, got)
				}
				return
			}
			if !ok {
				t.Fatalf("Match(%q) found nothing, want %q", tc.input, tc.phrase)
			}
			if got != replies[tc.phrase] {
				t.Errorf("Match(%q) = %q, want reply for %q", tc.input, got, tc.phrase)
			}
		})
	}
}

func TestNewMatcher_CustomTable(t *testing.T) {
	m, err := NewMatcher([]Entry{
		{"good morning", "Morning!"},
		{"g'day", "G'day mate"},
	})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if got, ok := m.Match("Good   morning"); ok {
		t.Errorf("phrase with different spacing matched: %q", got)
	}
	if got, _ := m.Match("good morning all"); got != "Morning!" {
		t.Errorf("Match = %q", got)
	}
	if got, _ := m.Match("G'DAY"); got != "G'day mate" {
		t.Errorf("quoted phrase not matched literally: %q", got)
	}
}
