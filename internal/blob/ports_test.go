package blob

import (
	"errors"
	"testing"
)

func TestParseURI(t *testing.T) {
	cases := []struct {
		in   string
		want Location
		ok   bool
	}{
		{"s3://bucket/audio/note.webm", Location{"s3", "bucket", "audio/note.webm"}, true},
		{"S3://bucket/k", Location{"s3", "bucket", "k"}, true},
		{"gs://voice2note/file.ogg", Location{"gs", "voice2note", "file.ogg"}, true},
		{"s3://bucket/", Location{}, false},
		{"bucket/key", Location{}, false},
		{"", Location{}, false},
	}
	for _, tc := range cases {
		got, err := ParseURI(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseURI(%q) = %+v, %v; want %+v", tc.in, got, err, tc.want)
			}
			if got.String() != "s3://bucket/audio/note.webm" && tc.in == "s3://bucket/audio/note.webm" {
				t.Fatalf("String() = %q", got.String())
			}
			continue
		}
		if !errors.Is(err, ErrUnsupportedURI) {
			t.Fatalf("ParseURI(%q) err = %v, want ErrUnsupportedURI", tc.in, err)
		}
	}
}

func TestCleanKey(t *testing.T) {
	cases := []struct {
		prefix, name, want string
		ok                 bool
	}{
		{"uploads", "note.webm", "uploads/note.webm", true},
		{"/uploads/", "../../etc/passwd", "uploads/passwd", true},
		{"", "a\\b\\c.ogg", "c.ogg", true},
		{"uploads", "dir/", "", false},
		{"uploads", "..", "", false},
	}
	for _, tc := range cases {
		got, err := CleanKey(tc.prefix, tc.name)
		if tc.ok != (err == nil) || got != tc.want {
			t.Fatalf("CleanKey(%q, %q) = %q, %v", tc.prefix, tc.name, got, err)
		}
	}
}
