package query

import "testing"

func TestPackUnpackRoundtrip(t *testing.T) {
	values := map[int][]byte{
		0: []byte("zero"),
		1: []byte("one"),
		2: {},
	}

	buf := Pack(values)

	recs, err := Unpack(buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}

	got := make(map[int][]byte, len(recs))
	for _, r := range recs {
		got[r.AttributeID] = r.Value
	}
	for id, v := range values {
		if string(got[id]) != string(v) {
			t.Fatalf("attribute %d = %q, want %q", id, got[id], v)
		}
	}
}

func TestPackOrderedPreservesOrder(t *testing.T) {
	values := map[int][]byte{3: []byte("c"), 1: []byte("a"), 2: []byte("b")}
	buf := PackOrdered([]int{1, 2, 3}, values)

	recs, err := Unpack(buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	wantIDs := []int{1, 2, 3}
	for i, id := range wantIDs {
		if recs[i].AttributeID != id {
			t.Fatalf("recs[%d].AttributeID = %d, want %d", i, recs[i].AttributeID, id)
		}
	}
}

func TestSizeMatchesRecordCount(t *testing.T) {
	buf := Pack(map[int][]byte{0: []byte("a"), 1: []byte("b")})
	n, err := Size(buf)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != 2 {
		t.Fatalf("Size = %d, want 2", n)
	}
}

func TestEmptyPack(t *testing.T) {
	buf := Pack(nil)
	n, err := Size(buf)
	if err != nil || n != 0 {
		t.Fatalf("Size = %d, %v, want 0, nil", n, err)
	}
	recs, err := Unpack(buf)
	if err != nil || len(recs) != 0 {
		t.Fatalf("Unpack = %v, %v, want empty, nil", recs, err)
	}
}

func TestDecoderStopsOnTruncatedBuffer(t *testing.T) {
	buf := Pack(map[int][]byte{0: []byte("hello")})
	truncated := buf[:len(buf)-2]

	_, err := Unpack(truncated)
	if err == nil {
		t.Fatal("expected an error decoding a truncated buffer")
	}
}

func TestUnpackRejectsShortHeader(t *testing.T) {
	if _, err := Unpack([]byte{0, 1}); err == nil {
		t.Fatal("expected an error for a buffer shorter than the header")
	}
}

func TestDecoderManualIteration(t *testing.T) {
	buf := Pack(map[int][]byte{0: []byte("x"), 1: []byte("y")})
	d, err := NewDecoder(buf)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	count := 0
	for d.Next() {
		count++
	}
	if err := d.Err(); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if count != d.Remaining() {
		t.Fatalf("decoded %d records, Remaining() = %d", count, d.Remaining())
	}
}
