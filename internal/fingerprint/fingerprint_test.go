package fingerprint

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestDigestDeterministic(t *testing.T) {
	data := []byte("page bytes")
	first := Digest(data)
	second := Digest(data)
	if first != second {
		t.Fatalf("digests differ: %s vs %s", first, second)
	}
	if len(first) != DigestLength {
		t.Fatalf("digest length = %d, want %d", len(first), DigestLength)
	}
	if !IsValidDigest(first) {
		t.Fatalf("digest %q not valid", first)
	}
}

func TestDigestDistinguishesContent(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Fatal("different bytes produced equal digests")
	}
}

func TestIsValidDigest(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6", true},
		{"a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6", true},
		{"", false},
		{"short", false},
		{"A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5DG", false},
		{"A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6A", false},
	}
	for _, tt := range tests {
		if got := IsValidDigest(tt.value); got != tt.want {
			t.Errorf("IsValidDigest(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestProbePNG(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 12, 34))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	width, height, err := Probe(buf.Bytes())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if width != 12 || height != 34 {
		t.Errorf("dimensions = %dx%d, want 12x34", width, height)
	}
}

func TestProbeGarbageFails(t *testing.T) {
	if _, _, err := Probe([]byte("not an image")); err == nil {
		t.Fatal("expected probe error for non-image bytes")
	}
}
