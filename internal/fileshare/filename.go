package fileshare

import "strings"

// Extension returns the lowercased suffix of name after its final dot, or ""
// when there is none. A suffix carrying a path separator or NUL is discarded
// so a stored name can never escape the blob root.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	ext := strings.ToLower(name[i+1:])
	if strings.ContainsAny(ext, "/\\\x00") {
		return ""
	}
	return ext
}

// StoredFilename derives the on-disk name of a blob from its id and the
// client's original filename: id when there is no extension, id.<ext> otherwise.
func StoredFilename(id, originalFilename string) string {
	ext := Extension(originalFilename)
	if ext == "" {
		return id
	}
	return id + "." + ext
}
