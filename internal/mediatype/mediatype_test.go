package mediatype

import "testing"

func TestResolve(t *testing.T) {
	testCases := []struct {
		name string
		slug string
		want string
	}{
		{"jpeg", "holiday.jpg", "image/jpeg"},
		{"upper case ext", "HOLIDAY.PNG", "image/png"},
		{"plain text", "notes.txt", "text/plain; charset=UTF-8"},
		{"html", "index.html", "text/html; charset=UTF-8"},
		{"json", "data.json", "application/json; charset=UTF-8"},
		{"svg", "logo.svg", "image/svg+xml; charset=UTF-8"},
		{"webp", "photo.webp", "image/webp"},
		{"avif", "photo.AVIF", "image/avif"},
		{"bare extension", "png", "image/png"},
		{"pdf", "report.final.pdf", "application/pdf"},
		{"unknown", "archive.unknownext", Fallback},
		{"no extension", "README", Fallback},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mt, ok := Resolve(tc.slug)
			if !ok {
				t.Fatalf("expected resolution for %q", tc.slug)
			}
			if got := mt.String(); got != tc.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tc.slug, got, tc.want)
			}
		})
	}
}

func TestExtraTypesOverrideHostTables(t *testing.T) {
	for ext, want := range extraTypes {
		mt, ok := Resolve("file" + ext)
		if !ok || mt.Type != want {
			t.Fatalf("Resolve(%q) = %q, want %q", "file"+ext, mt.Type, want)
		}
	}
}

func TestResolveEmptySlug(t *testing.T) {
	mt, ok := Resolve("  ")
	if ok {
		t.Fatalf("empty slug should skip resolution")
	}
	if !mt.IsZero() || mt.String() != "" {
		t.Fatalf("empty slug should yield zero media type, got %q", mt.String())
	}
}

func TestResolveBinaryHasNoCharset(t *testing.T) {
	mt, _ := Resolve("photo.gif")
	if mt.Charset != "" {
		t.Fatalf("binary type should not carry charset, got %q", mt.Charset)
	}
}

func TestForType(t *testing.T) {
	if got := ForType("image/png").String(); got != "image/png" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := ForType("text/plain").String(); got != "text/plain; charset=UTF-8" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := ForType("").String(); got != Fallback {
		t.Fatalf("unexpected: %s", got)
	}
}
