package domain

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Virat Kohli", "virat kohli"},
		{"  Sachin   Tendulkar ", "sachin tendulkar"},
		{"AB\tde\nVilliers", "ab de villiers"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlayerRecord_TotalAndCount(t *testing.T) {
	p := NewPlayerRecord("Virat Kohli", 27, 46, 1)
	if p.NormalizedName != "virat kohli" {
		t.Errorf("NormalizedName = %q", p.NormalizedName)
	}
	if p.Total() != 74 {
		t.Errorf("Total() = %d, want 74", p.Total())
	}

	counts := map[FormatKey]int{
		FormatTests: 27,
		FormatODIs:  46,
		FormatT20Is: 1,
		FormatTotal: 74,
	}
	for key, want := range counts {
		if got := p.Count(key); got != want {
			t.Errorf("Count(%s) = %d, want %d", key, got, want)
		}
	}
}

func TestDataset_LookupAndOrder(t *testing.T) {
	ds := NewDataset([]PlayerRecord{
		NewPlayerRecord("Sachin Tendulkar", 51, 49, 0),
		NewPlayerRecord("Virat Kohli", 27, 46, 1),
		NewPlayerRecord("virat  kohli", 0, 0, 0),
	})

	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}
	if ds.At(0).Name != "Sachin Tendulkar" {
		t.Errorf("At(0) = %q, want Sachin Tendulkar", ds.At(0).Name)
	}

	p, ok := ds.Lookup("VIRAT KOHLI")
	if !ok {
		t.Fatal("expected Lookup to find Virat Kohli")
	}
	if p.ODIs != 46 {
		t.Errorf("Lookup returned duplicate instead of first record: %+v", p)
	}

	if _, ok := ds.Lookup("Don Bradman"); ok {
		t.Error("expected Lookup to miss unknown player")
	}
}

func TestDataset_PlayersIsCopy(t *testing.T) {
	ds := NewDataset([]PlayerRecord{NewPlayerRecord("Joe Root", 36, 17, 0)})
	players := ds.Players()
	players[0].Tests = 0
	if ds.At(0).Tests != 36 {
		t.Error("mutating Players() result changed the dataset")
	}
}

func TestDataset_Nil(t *testing.T) {
	var ds *Dataset
	if ds.Len() != 0 {
		t.Error("nil dataset should have length 0")
	}
	if _, ok := ds.Lookup("anyone"); ok {
		t.Error("nil dataset lookup should miss")
	}
}

func TestFormatKey_Label(t *testing.T) {
	if FormatODIs.Label() != "ODIs" {
		t.Errorf("Label() = %q", FormatODIs.Label())
	}
	if FormatTotal.Label() != "all formats" {
		t.Errorf("Label() = %q", FormatTotal.Label())
	}
}
