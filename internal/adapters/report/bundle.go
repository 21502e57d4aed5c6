package report

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
)

// Bundle writes reports into a ZIP archive on w. Repeated filenames get a
// numeric suffix so no report overwrites another.
func Bundle(w io.Writer, reports []Report, modified time.Time) error {
	if len(reports) == 0 {
		return ErrEmptyBundle
	}
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(reports))
	for _, r := range reports {
		name := uniqueName(seen, r.Filename)
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", name, err)
		}
		if _, err := f.Write(r.PDF); err != nil {
			return fmt.Errorf("zip write %s: %w", name, err)
		}
	}
	return zw.Close()
}

func uniqueName(seen map[string]int, name string) string {
	key := strings.ToLower(name)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return name
	}
	base := strings.TrimSuffix(name, ".pdf")
	for {
		n++
		candidate := fmt.Sprintf("%s_%d.pdf", base, n)
		if _, taken := seen[strings.ToLower(candidate)]; !taken {
			seen[strings.ToLower(candidate)] = 1
			return candidate
		}
	}
}
