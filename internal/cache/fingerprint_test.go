package cache

import "testing"

func TestFingerprintDeterminism(t *testing.T) {
	material := TransmuteMaterial("u1", "A energia solar", "PRACTICE")

	first := Fingerprint(material)
	second := Fingerprint(material)

	if first != second {
		t.Fatalf("fingerprint not stable: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base := Fingerprint(TransmuteMaterial("u1", "content", "PRACTICE"))

	variants := map[string]string{
		"user":    TransmuteMaterial("u2", "content", "PRACTICE"),
		"content": TransmuteMaterial("u1", "other", "PRACTICE"),
		"mode":    TransmuteMaterial("u1", "content", "STORYTELLING"),
	}

	for name, material := range variants {
		if got := Fingerprint(material); got == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

func TestChatMaterialDiffersFromTransmute(t *testing.T) {
	chat := Fingerprint(ChatMaterial("u1", "hello"))
	transmute := Fingerprint(TransmuteMaterial("u1", "hello", ""))

	if chat == transmute {
		t.Fatalf("chat and transmute material collided")
	}
}
