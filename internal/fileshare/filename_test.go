package fileshare

import "testing"

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "pdf"},
		{"Report.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"Makefile", ""},
		{".bashrc", "bashrc"},
		{"trailing.", ""},
		{"", ""},
		{"a.b/c", ""},
		{`a.b\c`, ""},
		{"a.b\x00c", ""},
	}

	for _, tt := range tests {
		if got := Extension(tt.name); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStoredFilename(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"photo.JPG", "abc.jpg"},
		{"README", "abc"},
		{"trailing.", "abc"},
		{"x.y/../../z", "abc"},
	}

	for _, tt := range tests {
		if got := StoredFilename("abc", tt.original); got != tt.want {
			t.Errorf("StoredFilename(abc, %q) = %q, want %q", tt.original, got, tt.want)
		}
	}
}
