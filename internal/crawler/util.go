package crawler

import (
	"fmt"
	"path"
	"strings"
)

// Characters and entities that are not valid in a directory name on common filesystems.
var invalidDirTokens = []string{"<", ">", ":", "\"", "\\", "/", "|", "?", "*", "&nbsp;", "\u00a0"}

const untitledDir = "untitled"

// SanitizeDirName strips filesystem-invalid tokens from a title so it can be used as a directory name.
func SanitizeDirName(title string) string {
	name := title
	for _, token := range invalidDirTokens {
		name = strings.ReplaceAll(name, token, "")
	}
	return name
}

// ImagePath returns the blob path of the index-th image of an article titled title.
func ImagePath(title string, index int, ext string) string {
	dir := strings.TrimSpace(SanitizeDirName(title))
	if dir == "" || dir == "." || dir == ".." {
		dir = untitledDir
	}
	if ext == "" {
		ext = ".jpg"
	}
	return path.Join(dir, fmt.Sprintf("%d%s", index, ext))
}
