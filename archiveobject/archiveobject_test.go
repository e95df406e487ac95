package archiveobject

import (
	"testing"

	"github.com/dagarchive/alter/swhid"
)

func TestContentSWHID(t *testing.T) {
	c := &Content{SHA1Git: [20]byte{0x16}}
	if c.SWHID().ObjectType != swhid.Content {
		t.Fatalf("expected content type")
	}
}

func TestOriginSWHIDDerivedFromURL(t *testing.T) {
	o := &Origin{URL: "https://example.org/repo"}
	s1 := o.SWHID()
	o2 := &Origin{URL: "https://example.org/repo"}
	if s1 != o2.SWHID() {
		t.Fatalf("origin swhid should be deterministic from url")
	}
}

func TestDirectoryOutboundTargets(t *testing.T) {
	target := swhid.MustParse("swh:1:cnt:0000000000000000000000000000000000000016")
	d := &Directory{Entries: []DirEntry{{Name: []byte("a"), Target: target}}}
	targets := OutboundTargets(d)
	if len(targets) != 1 || targets[0] != target {
		t.Fatalf("unexpected outbound targets: %v", targets)
	}
}

func TestMarshalCanonicalProducesOutput(t *testing.T) {
	c := &Content{SHA1Git: [20]byte{0x16}, Length: 3, HasData: true, Data: []byte("42\n")}
	b, err := MarshalCanonical(c)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected non-empty output")
	}
}
