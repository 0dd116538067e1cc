package resultcache

import (
	"errors"
	"testing"
	"time"
)

func TestParseAnnotation(t *testing.T) {
	cases := []struct {
		name    string
		line    string
		want    Directive
		matched bool
	}{
		{
			name:    "bare cache",
			line:    "@cache",
			want:    Directive{Enabled: true},
			matched: true,
		},
		{
			name:    "ttl duration",
			line:    "@cache ttl=30s",
			want:    Directive{Enabled: true, TTL: TTL(30 * time.Second)},
			matched: true,
		},
		{
			name:    "ttl milliseconds",
			line:    "@cache ttl=1500",
			want:    Directive{Enabled: true, TTL: TTL(1500 * time.Millisecond)},
			matched: true,
		},
		{
			name:    "identifier and ttl",
			line:    "@cache id=popular-posts ttl=5m",
			want:    Directive{Enabled: true, Identifier: "popular-posts", TTL: TTL(5 * time.Minute)},
			matched: true,
		},
		{
			name:    "surrounding whitespace",
			line:    "   @cache id=x   ",
			want:    Directive{Enabled: true, Identifier: "x"},
			matched: true,
		},
		{
			name: "not an annotation",
			line: "plain comment",
		},
		{
			name: "prefix without separator",
			line: "@cacheable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseAnnotation(tc.line)
			if err != nil {
				t.Fatalf("ParseAnnotation returned error: %v", err)
			}
			if ok != tc.matched {
				t.Fatalf("matched = %v, want %v", ok, tc.matched)
			}
			if !ok {
				return
			}
			if got.Enabled != tc.want.Enabled || got.Identifier != tc.want.Identifier {
				t.Errorf("directive = %+v, want %+v", got, tc.want)
			}
			switch {
			case (got.TTL == nil) != (tc.want.TTL == nil):
				t.Errorf("ttl presence = %v, want %v", got.TTL, tc.want.TTL)
			case got.TTL != nil && *got.TTL != *tc.want.TTL:
				t.Errorf("ttl = %v, want %v", *got.TTL, *tc.want.TTL)
			}
		})
	}
}

func TestParseAnnotation_InvalidTTL(t *testing.T) {
	for _, line := range []string{"@cache ttl=0", "@cache ttl=-5s", "@cache ttl=soon"} {
		t.Run(line, func(t *testing.T) {
			_, _, err := ParseAnnotation(line)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("ParseAnnotation(%q) error = %v, want ConfigurationError", line, err)
			}
		})
	}
}

func TestDirectiveFromSQL(t *testing.T) {
	query := "-- @cache id=admins ttl=2s\nSELECT * FROM users WHERE \"isAdmin\" = ?"

	d, err := DirectiveFromSQL(query)
	if err != nil {
		t.Fatalf("DirectiveFromSQL returned error: %v", err)
	}
	if !d.Enabled || d.Identifier != "admins" || d.TTL == nil || *d.TTL != 2*time.Second {
		t.Errorf("directive = %+v", d)
	}

	plain, err := DirectiveFromSQL("SELECT 1")
	if err != nil {
		t.Fatalf("DirectiveFromSQL returned error: %v", err)
	}
	if plain.Enabled {
		t.Error("expected a disabled directive for an unannotated query")
	}
}

func TestAnnotationDoesNotChangeIdentity(t *testing.T) {
	a := Fingerprint("SELECT * FROM users WHERE active = ?", []any{true})
	b := Fingerprint("-- @cache ttl=10s\nSELECT * FROM users WHERE active = ?", []any{true})
	if a != b {
		t.Error("annotation comment changed the query fingerprint")
	}
}

func TestDirectiveValidate(t *testing.T) {
	if err := (Directive{Enabled: true, TTL: TTL(0)}).validate(); err == nil {
		t.Error("expected explicit zero ttl to be rejected")
	}
	if err := (Directive{Enabled: true, TTL: TTL(-time.Second)}).validate(); err == nil {
		t.Error("expected negative ttl to be rejected")
	}
	if err := (Directive{Enabled: true}).validate(); err != nil {
		t.Errorf("directive without ttl override should validate, got %v", err)
	}
}
