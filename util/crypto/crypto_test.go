package crypto

import "testing"

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPasswordAsBcrypt("s3cret!")
	if err != nil {
		t.Fatalf("HashPasswordAsBcrypt error: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPasswordHash(hash, "s3cret!") {
		t.Fatal("CheckPasswordHash rejected the right password")
	}
	if CheckPasswordHash(hash, "wrong") {
		t.Fatal("CheckPasswordHash accepted a wrong password")
	}
}

func TestCheckPasswordHashEmptyHash(t *testing.T) {
	if CheckPasswordHash("", "anything") {
		t.Fatal("empty hash must never match")
	}
}

func TestSecretEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"abc123", "abc123", true},
		{"abc123", "abc124", false},
		{"abc", "abc123", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := SecretEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("SecretEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
