package swhid

import "testing"

func TestParseRoundTrip(t *testing.T) {
	text := "swh:1:cnt:0000000000000000000000000000000000000016"
	s, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.String() != text {
		t.Fatalf("got %s, want %s", s.String(), text)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"",
		"swh:2:cnt:0000000000000000000000000000000000000016",
		"swh:1:xyz:0000000000000000000000000000000000000016",
		"swh:1:cnt:deadbeef",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error", c)
		}
	}
}

func TestFilenameSegment(t *testing.T) {
	s := MustParse("swh:1:cnt:0000000000000000000000000000000000000016")
	want := "swh_1_cnt_0000000000000000000000000000000000000016"
	if got := s.FilenameSegment(); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSortByOrder(t *testing.T) {
	rev := MustParse("swh:1:rev:0000000000000000000000000000000000000018")
	ori := MustParse("swh:1:ori:8f50d3f60eae370ddbf85c86219c55108a350165")
	cnt := MustParse("swh:1:cnt:0000000000000000000000000000000000000016")
	swhids := []SWHID{rev, cnt, ori}
	SortByOrder(swhids)
	if swhids[0] != ori || swhids[1] != rev || swhids[2] != cnt {
		t.Fatalf("unexpected order: %v", swhids)
	}
}
