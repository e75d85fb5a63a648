package comicfile

import (
	"archive/zip"
	"io"

	"longbox/internal/services"
)

func listZipEntries(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "cbz", "open archive", path, err)
	}
	defer reader.Close()

	entries := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, file.Name)
	}
	return entries, nil
}

func listZipPages(path string) ([]string, error) {
	entries, err := listZipEntries(path)
	if err != nil {
		return nil, err
	}
	pages := entries[:0]
	for _, entry := range entries {
		if isPageEntry(entry) {
			pages = append(pages, entry)
		}
	}
	sortPages(pages)
	return pages, nil
}

func loadZipEntry(path, name string) ([]byte, error) {
	if err := safeEntryName(name); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cbz", "load entry", name, err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "cbz", "open archive", path, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, services.Wrap(services.ErrAdaptor, "cbz", "open entry", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, services.Wrap(services.ErrAdaptor, "cbz", "read entry", name, err)
		}
		return data, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "cbz", "load entry", name, nil)
}
