package comicfile

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"

	"longbox/internal/library"
	"longbox/internal/services"
)

// RebuildArchive rewrites a comic's container as CBZ, writing only the given
// pages in order. The new file is assembled next to the target and renamed
// into place, so a failed rebuild never clobbers the original. Returns the
// path of the rebuilt archive (the original path with a .cbz extension).
func RebuildArchive(sourcePath string, kind library.ArchiveKind, pages []library.Page) (string, error) {
	targetPath := sourcePath
	if ext := filepath.Ext(targetPath); ext != "" {
		targetPath = targetPath[:len(targetPath)-len(ext)]
	}
	targetPath += ".cbz"

	tmpPath := targetPath + ".rebuild"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", services.Wrap(services.ErrAdaptor, "rebuild", "create archive", tmpPath, err)
	}

	writer := zip.NewWriter(out)
	for i, page := range pages {
		data, err := LoadPageBytes(sourcePath, kind, page.Filename)
		if err != nil {
			writer.Close()
			out.Close()
			os.Remove(tmpPath)
			return "", err
		}
		// Entry names are renumbered so the rebuilt archive lists pages in
		// their new dense order regardless of original naming.
		entryName := fmt.Sprintf("%03d%s", i, filepath.Ext(page.Filename))
		entry, err := writer.Create(entryName)
		if err != nil {
			writer.Close()
			out.Close()
			os.Remove(tmpPath)
			return "", services.Wrap(services.ErrAdaptor, "rebuild", "create entry", entryName, err)
		}
		if _, err := entry.Write(data); err != nil {
			writer.Close()
			out.Close()
			os.Remove(tmpPath)
			return "", services.Wrap(services.ErrAdaptor, "rebuild", "write entry", entryName, err)
		}
	}

	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAdaptor, "rebuild", "finalize archive", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAdaptor, "rebuild", "close archive", tmpPath, err)
	}

	if targetPath != sourcePath {
		// Container format changed (cbr -> cbz); drop the old file after
		// the replacement is fully written.
		if err := os.Rename(tmpPath, targetPath); err != nil {
			os.Remove(tmpPath)
			return "", services.Wrap(services.ErrAdaptor, "rebuild", "rename archive", targetPath, err)
		}
		if err := os.Remove(sourcePath); err != nil {
			return "", services.Wrap(services.ErrAdaptor, "rebuild", "remove original", sourcePath, err)
		}
		return targetPath, nil
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return "", services.Wrap(services.ErrAdaptor, "rebuild", "rename archive", targetPath, err)
	}
	return targetPath, nil
}
