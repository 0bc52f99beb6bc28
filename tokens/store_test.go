package tokens

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "token"))
}

// signedToken mints an HS256 JWT; exp is omitted when zero.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.New()
	if err := tok.Set(jwt.SubjectKey, "user-1"); err != nil {
		t.Fatal(err)
	}
	if !exp.IsZero() {
		if err := tok.Set(jwt.ExpirationKey, exp); err != nil {
			t.Fatal(err)
		}
	}
	signed, err := jwt.Sign(tok, jwa.HS256, []byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return string(signed)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if store.Has() {
		t.Fatal("fresh store should be empty")
	}
	if _, ok := store.Get(); ok {
		t.Fatal("Get on empty store should report absence")
	}

	token := signedToken(t, time.Now().Add(time.Hour))
	if err := store.Set(token); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := store.Get()
	if !ok {
		t.Fatal("Get after Set should find the token")
	}
	if got != token {
		t.Errorf("Get() = %q, want %q", got, token)
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if store.Has() {
		t.Error("store should be empty after Remove")
	}
}

func TestFileStoreRemoveAbsent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove(); err != nil {
		t.Errorf("removing an absent token should not error, got %v", err)
	}
}

func TestFileStoreIsValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"future expiry", "", true},
		{"past expiry", "", false},
		{"missing exp claim", "", false},
		{"not a JWT", "not-a-jwt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			store.now = func() time.Time { return now }

			token := tt.token
			switch tt.name {
			case "future expiry":
				token = signedToken(t, now.Add(30*time.Minute))
			case "past expiry":
				token = signedToken(t, now.Add(-time.Minute))
			case "missing exp claim":
				token = signedToken(t, time.Time{})
			}

			if err := store.Set(token); err != nil {
				t.Fatal(err)
			}
			if got := store.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("empty store", func(t *testing.T) {
		store := newTestStore(t)
		if store.IsValid() {
			t.Error("empty store should not be valid")
		}
	})
}

func TestFileStoreExpiration(t *testing.T) {
	store := newTestStore(t)

	if _, ok := store.Expiration(); ok {
		t.Fatal("empty store should have no expiration")
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := store.Set(signedToken(t, exp)); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Expiration()
	if !ok {
		t.Fatal("Expiration should be readable after Set")
	}
	if !got.Equal(exp) {
		t.Errorf("Expiration() = %v, want %v", got, exp)
	}
}
