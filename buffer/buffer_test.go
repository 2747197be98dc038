package buffer

import (
	"bytes"
	"strings"
	"testing"
)

func checkInvariant(t *testing.T, b *Buffer) {
	t.Helper()
	if b.WritableBytes()+b.ReadableBytes()+b.PrependableBytes() != b.Cap() {
		t.Fatalf("cursor invariant broken: w=%d r=%d p=%d cap=%d",
			b.WritableBytes(), b.ReadableBytes(), b.PrependableBytes(), b.Cap())
	}
}

func TestNewDefaults(t *testing.T) {
	b := New(0)
	if b.Cap() != DefaultSize {
		t.Errorf("Expected cap %d, got %d", DefaultSize, b.Cap())
	}
	if b.ReadableBytes() != 0 || b.PrependableBytes() != 0 {
		t.Error("New buffer should be empty")
	}
	checkInvariant(t, b)
}

func TestAppendRetrieve(t *testing.T) {
	b := New(8)
	b.AppendString("hello")
	checkInvariant(t, b)

	if string(b.Peek()) != "hello" {
		t.Errorf("Expected peek hello, got %q", b.Peek())
	}

	b.Retrieve(2)
	checkInvariant(t, b)
	if string(b.Peek()) != "llo" {
		t.Errorf("Expected llo after retrieve, got %q", b.Peek())
	}
	if b.PrependableBytes() != 2 {
		t.Errorf("Expected 2 prependable bytes, got %d", b.PrependableBytes())
	}

	b.RetrieveUntil(1)
	if string(b.Peek()) != "lo" {
		t.Errorf("Expected lo, got %q", b.Peek())
	}

	if s := b.RetrieveAllString(); s != "lo" {
		t.Errorf("Expected lo from RetrieveAllString, got %q", s)
	}
	if b.ReadableBytes() != 0 || b.PrependableBytes() != 0 {
		t.Error("RetrieveAllString should reset both cursors")
	}
	checkInvariant(t, b)
}

func TestCompactionReusesStorage(t *testing.T) {
	b := New(10)
	b.AppendString("abcdefgh")
	b.Retrieve(6)
	before := b.Cap()

	// 2 writable + 6 prependable >= 5, so this must compact, not grow
	b.AppendString("12345")
	checkInvariant(t, b)

	if b.Cap() != before {
		t.Errorf("Expected compaction to keep cap %d, got %d", before, b.Cap())
	}
	if b.PrependableBytes() != 0 {
		t.Errorf("Expected compaction to reset read cursor, got %d", b.PrependableBytes())
	}
	if string(b.Peek()) != "gh12345" {
		t.Errorf("Expected gh12345, got %q", b.Peek())
	}
}

func TestGrowth(t *testing.T) {
	b := New(4)
	b.AppendString("ab")
	b.EnsureWriteable(10)
	checkInvariant(t, b)

	if b.Cap() != 2+10+1 {
		t.Errorf("Expected cap writePos+len+1 = 13, got %d", b.Cap())
	}
	if string(b.Peek()) != "ab" {
		t.Errorf("Growth lost data: %q", b.Peek())
	}

	// the reserved space must absorb exactly len bytes without another resize
	capAfter := b.Cap()
	b.Append(bytes.Repeat([]byte("x"), 10))
	if b.Cap() != capAfter {
		t.Errorf("Expected no second reallocation, cap went %d -> %d", capAfter, b.Cap())
	}
	checkInvariant(t, b)
}

func TestAccountingOverManyOperations(t *testing.T) {
	b := New(16)
	appended, retrieved := 0, 0

	for i := 0; i < 200; i++ {
		chunk := strings.Repeat("z", i%37+1)
		b.AppendString(chunk)
		appended += len(chunk)
		checkInvariant(t, b)

		n := (i * 7) % (b.ReadableBytes() + 1)
		b.Retrieve(n)
		retrieved += n
		checkInvariant(t, b)

		if b.ReadableBytes()+retrieved != appended {
			t.Fatalf("step %d: readable %d + retrieved %d != appended %d",
				i, b.ReadableBytes(), retrieved, appended)
		}
	}
}

func TestHasWritten(t *testing.T) {
	b := New(16)
	n := copy(b.BeginWrite(), "direct")
	b.HasWritten(n)
	if string(b.Peek()) != "direct" {
		t.Errorf("Expected direct, got %q", b.Peek())
	}
	checkInvariant(t, b)
}

func TestRetrievePastEndPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic retrieving beyond readable bytes")
		}
	}()
	b := New(4)
	b.AppendString("ab")
	b.Retrieve(3)
}

func TestWriterInterface(t *testing.T) {
	b := New(2)
	n, err := b.Write([]byte("written through io.Writer"))
	if err != nil || n != 25 {
		t.Fatalf("Write returned %d, %v", n, err)
	}
	if _, err := b.WriteString("!"); err != nil {
		t.Fatal(err)
	}
	if got := b.RetrieveAllString(); got != "written through io.Writer!" {
		t.Errorf("Unexpected content %q", got)
	}
}
