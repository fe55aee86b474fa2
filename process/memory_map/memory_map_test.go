package memory_map

import (
	"strings"
	"testing"
)

const sampleMaps = `55d0c0a00000-55d0c0a02000 r--p 00000000 08:02 1311 /usr/bin/game
55d0c0a02000-55d0c0a08000 r-xp 00002000 08:02 1311 /usr/bin/game
55d0c0a08000-55d0c0a0a000 rw-p 00008000 08:02 1311 /usr/bin/game
55d0c1400000-55d0c1421000 rw-p 00000000 00:00 0 [heap]
7f2a10000000-7f2a10021000 rw-p 00000000 00:00 0
7f2a18000000-7f2a18001000 ---p 00000000 00:00 0
7f2a20000000-7f2a20010000 r--p 00000000 08:02 99 /usr/share/fonts/My Font.ttf
7ffc3b6f0000-7ffc3b711000 rw-p 00000000 00:00 0 [stack]
not a maps line
`

func TestParseMaps(t *testing.T) {
	mm, err := ParseMaps(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("unexpected error (%s)", err)
	}
	if len(mm) != 8 {
		t.Fatalf("expecting 8 items, got %d", len(mm))
	}

	heap := mm[3]
	if heap.Address != 0x55d0c1400000 || heap.Size != 0x21000 || heap.Path != "[heap]" {
		t.Errorf("unexpected heap item %v", heap)
	}
	if mm[1].Inode != 1311 || mm[1].Offset != 0x2000 || mm[1].Device != "08:02" {
		t.Errorf("unexpected file-backed item %+v", mm[1])
	}
	if mm[6].Path != "/usr/share/fonts/My Font.ttf" {
		t.Errorf("path with spaces not preserved: %q", mm[6].Path)
	}
}

func TestClassification(t *testing.T) {
	mm, err := ParseMaps(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("unexpected error (%s)", err)
	}

	expected := []Kind{
		KindMapped,      // read-only file
		KindCodeStatic,  // r-x file
		KindCodeMutable, // rw file
		KindHeap,        // [heap]
		KindHeap,        // anonymous rw
		KindMapped,      // guard page
		KindMapped,      // read-only font
		KindMapped,      // [stack]
	}
	for i, item := range mm {
		if item.Kind() != expected[i] {
			t.Errorf("item %d (%s): expecting %s, got %s", i, item.Path, expected[i], item.Kind())
		}
	}
}

func TestSelect(t *testing.T) {
	mm, _ := ParseMaps(strings.NewReader(sampleMaps))

	heap := Select(mm, KindHeap)
	if len(heap) != 2 {
		t.Fatalf("expecting 2 heap regions, got %d", len(heap))
	}
	for _, r := range heap {
		if !r.Readable() || !r.Writable() || r.Length == 0 {
			t.Errorf("unexpected heap region %s", r)
		}
	}

	both := Select(mm, KindHeap|KindCodeMutable)
	if len(both) != 3 {
		t.Fatalf("expecting 3 heap+main regions, got %d", len(both))
	}
	for i := 1; i < len(both); i++ {
		if both[i-1].Base > both[i].Base {
			t.Errorf("regions not sorted by base")
		}
	}

	// the ---p guard page is never selected
	for _, r := range Select(mm, KindAll) {
		if r.Base == 0x7f2a18000000 {
			t.Errorf("unreadable region selected")
		}
	}
}

func TestParseKindMask(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		fail bool
	}{
		{in: "heap", want: KindHeap},
		{in: "HEAP+MAIN", want: KindHeap | KindCodeMutable},
		{in: "all", want: KindAll},
		{in: "code,mapped", want: KindCodeStatic | KindMapped},
		{in: "", fail: true},
		{in: "heap+nope", fail: true},
		{in: "stack", fail: true},
	}

	for _, tt := range tests {
		got, err := ParseKindMask(tt.in)
		if tt.fail {
			if err == nil {
				t.Errorf("%q: expected failure", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error (%s)", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expecting %s, got %s", tt.in, tt.want, got)
		}
	}

	if KindAll.String() != "all" || (KindHeap | KindCodeMutable).String() != "heap+main" {
		t.Errorf("unexpected kind names %s / %s", KindAll, KindHeap|KindCodeMutable)
	}
}

func TestFindAndContains(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x3000, Size: 0x1000, Perms: "rw-p"},
		{Address: 0x1000, Size: 0x1000, Perms: "r--p"},
	}
	SortByAddress(mm)

	if item := Find(0x1800, mm); item == nil || item.Address != 0x1000 {
		t.Errorf("expecting region 0x1000 for 0x1800")
	}
	if item := Find(0x2800, mm); item != nil {
		t.Errorf("expecting no region for 0x2800")
	}
	if item := Contains(0x3ffc, 4, mm); item == nil {
		t.Errorf("expecting 0x3ffc+4 to fit")
	}
	if item := Contains(0x3ffe, 4, mm); item != nil {
		t.Errorf("expecting 0x3ffe+4 to straddle the end")
	}
}
