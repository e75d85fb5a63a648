package comicfile

import (
	"errors"
	"io"

	"github.com/nwaples/rardecode"

	"longbox/internal/services"
)

func listRarEntries(path string) ([]string, error) {
	reader, err := rardecode.OpenReader(path, "")
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "cbr", "open archive", path, err)
	}
	defer reader.Close()

	var entries []string
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrAdaptor, "cbr", "read header", path, err)
		}
		if header.IsDir {
			continue
		}
		entries = append(entries, header.Name)
	}
	return entries, nil
}

func listRarPages(path string) ([]string, error) {
	entries, err := listRarEntries(path)
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

func loadRarEntry(path, name string) ([]byte, error) {
	if err := safeEntryName(name); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cbr", "load entry", name, err)
	}

	reader, err := rardecode.OpenReader(path, "")
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "cbr", "open archive", path, err)
	}
	defer reader.Close()

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrAdaptor, "cbr", "read header", path, err)
		}
		if header.IsDir || header.Name != name {
			continue
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, services.Wrap(services.ErrAdaptor, "cbr", "read entry", name, err)
		}
		return data, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "cbr", "load entry", name, nil)
}
