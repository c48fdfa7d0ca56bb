package samplefile

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestParseDecimalAndHex(t *testing.T) {
	words, err := Parse(strings.NewReader("1, 2 3\t0x10\n0XFF"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []uint32{1, 2, 3, 16, 255}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %v, want %v", words, want)
	}
}

func TestParseStripsVisualSeparators(t *testing.T) {
	words, err := Parse(strings.NewReader("1_000_000 0x0.A"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []uint32{1000000, 0x0A}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %v, want %v", words, want)
	}
}

func TestParseLineComments(t *testing.T) {
	src := "1 2 // trailing comment 3\n4 # hash comment 5\n6 ; semicolon comment 7\n8"
	words, err := Parse(strings.NewReader(src), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []uint32{1, 2, 4, 6, 8}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %v, want %v", words, want)
	}
}

func TestParseBlockComment(t *testing.T) {
	words, err := Parse(strings.NewReader("1 /* skip\nthis whole\nblock */ 2"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []uint32{1, 2}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %v, want %v", words, want)
	}
}

func TestParseUnterminatedBlockComment(t *testing.T) {
	if _, err := Parse(strings.NewReader("1 /* never closes"), 0); err == nil {
		t.Fatal("expected error for unterminated block comment")
	}
}

func TestParseRejectsWrongSampleMultiple(t *testing.T) {
	if _, err := Parse(strings.NewReader("1 2 3"), 2); err == nil {
		t.Fatal("expected error: 3 words is not a multiple of 2")
	}
}

func TestParseAcceptsExactSampleMultiple(t *testing.T) {
	words, err := Parse(strings.NewReader("1 2 3 4"), 2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(words) != 4 {
		t.Fatalf("len(words) = %d, want 4", len(words))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := []uint32{1, 2, 3, 4294967295}
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Parse(&buf, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip = %v, want %v", out, in)
	}
}

func TestWordsToBytesLittleEndian(t *testing.T) {
	got := WordsToBytes([]uint32{0x01020304})
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("WordsToBytes = % x, want % x", got, want)
	}
}
