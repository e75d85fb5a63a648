// Package comicfile reads comic-book archives. It classifies containers by
// magic bytes, lists page entries in display order, loads page bytes, and
// rewrites CBZ containers for the rebuild pipeline. CBR archives are
// read-only; rebuilds always emit CBZ.
package comicfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"longbox/internal/library"
	"longbox/internal/services"
)

// ComicInfoFilename is the embedded metadata descriptor recognized during
// ingest for metadata-source attachment.
const ComicInfoFilename = "ComicInfo.xml"

var (
	zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}
	rarMagic = []byte{0x52, 0x61, 0x72, 0x21}
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// Classify inspects the file's leading bytes and reports its archive kind.
// The file extension is never consulted.
func Classify(path string) (library.ArchiveKind, error) {
	file, err := os.Open(path)
	if err != nil {
		return library.ArchiveUnknown, services.Wrap(services.ErrAdaptor, "classify", "open archive", path, err)
	}
	defer file.Close()

	magic := make([]byte, 4)
	if _, err := file.Read(magic); err != nil {
		return library.ArchiveUnknown, services.Wrap(services.ErrAdaptor, "classify", "read magic", path, err)
	}

	switch {
	case bytes.Equal(magic, zipMagic):
		return library.ArchiveCBZ, nil
	case bytes.Equal(magic, rarMagic):
		return library.ArchiveCBR, nil
	default:
		return library.ArchiveUnknown, nil
	}
}

// ListPages returns the archive's image entries in display order.
func ListPages(path string, kind library.ArchiveKind) ([]string, error) {
	switch kind {
	case library.ArchiveCBZ:
		return listZipPages(path)
	case library.ArchiveCBR:
		return listRarPages(path)
	default:
		return nil, services.Wrap(services.ErrValidation, "list pages", "unsupported archive kind", string(kind), nil)
	}
}

// LoadPageBytes extracts one page's raw bytes by its filename within the
// archive.
func LoadPageBytes(path string, kind library.ArchiveKind, pageName string) ([]byte, error) {
	switch kind {
	case library.ArchiveCBZ:
		return loadZipEntry(path, pageName)
	case library.ArchiveCBR:
		return loadRarEntry(path, pageName)
	default:
		return nil, services.Wrap(services.ErrValidation, "load page", "unsupported archive kind", string(kind), nil)
	}
}

// HasComicInfo reports whether the archive embeds a ComicInfo.xml descriptor.
func HasComicInfo(path string, kind library.ArchiveKind) (bool, error) {
	entries, err := listEntries(path, kind)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if strings.EqualFold(filepath.Base(entry), ComicInfoFilename) {
			return true, nil
		}
	}
	return false, nil
}

func listEntries(path string, kind library.ArchiveKind) ([]string, error) {
	switch kind {
	case library.ArchiveCBZ:
		return listZipEntries(path)
	case library.ArchiveCBR:
		return listRarEntries(path)
	default:
		return nil, services.Wrap(services.ErrValidation, "list entries", "unsupported archive kind", string(kind), nil)
	}
}

// isPageEntry filters archive entries down to displayable page images.
func isPageEntry(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// sortPages orders entries the way readers expect: case-insensitive, with
// embedded numbers compared numerically so page2 sorts before page10.
func sortPages(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return naturalLess(strings.ToLower(names[i]), strings.ToLower(names[j]))
	})
}

func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			aNum, aRest := splitLeadingNumber(a)
			bNum, bRest := splitLeadingNumber(b)
			if aNum != bNum {
				return aNum < bNum
			}
			a, b = aRest, bRest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitLeadingNumber(s string) (int64, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	var value int64
	for _, c := range []byte(s[:i]) {
		value = value*10 + int64(c-'0')
	}
	return value, s[i:]
}

// safeEntryName rejects entries that would escape the archive root when
// treated as paths.
func safeEntryName(name string) error {
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return fmt.Errorf("unsafe archive entry %q", name)
	}
	return nil
}
