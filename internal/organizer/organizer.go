// Package organizer computes library destinations from a renaming rule and
// moves archives (plus sidecar metadata files) into place without clobbering
// existing files.
package organizer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"longbox/internal/fileutil"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/services"
	"longbox/internal/textutil"
)

// Organizer relocates comic archives into their final library layout.
type Organizer struct {
	logger *slog.Logger
	caser  cases.Caser
}

// New constructs an organizer.
func New(logger *slog.Logger) *Organizer {
	return &Organizer{
		logger: logging.NewComponentLogger(logger, "organizer"),
		caser:  cases.Title(language.English, cases.NoLower),
	}
}

// Plan renders the renaming rule for the comic and joins it under targetDir.
// The archive extension is carried over from the current filename. The
// returned path ignores collisions; Move resolves those.
func (o *Organizer) Plan(targetDir, rule string, comic *library.Comic) (string, error) {
	targetDir = strings.TrimSpace(targetDir)
	if targetDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organize", "plan_destination",
			"target directory is required", nil)
	}
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return "", services.Wrap(services.ErrConfiguration, "organize", "plan_destination",
			"renaming rule is required", nil)
	}

	rendered := o.render(rule, comic)
	if strings.TrimSpace(strings.ReplaceAll(rendered, "/", "")) == "" {
		return "", services.Wrap(services.ErrValidation, "organize", "plan_destination",
			fmt.Sprintf("renaming rule %q produced an empty path for %s", rule, comic.Filename), nil)
	}

	ext := filepath.Ext(comic.Filename)
	if ext == "" {
		ext = ".cbz"
	}
	return filepath.Join(targetDir, rendered+ext), nil
}

// Move relocates the comic archive to the planned destination, picking a
// non-colliding filename by appending an incrementing numeric suffix, and
// brings any sidecar metadata file along. It returns the final archive path.
func (o *Organizer) Move(targetDir, rule string, comic *library.Comic) (string, error) {
	planned, err := o.Plan(targetDir, rule, comic)
	if err != nil {
		return "", err
	}
	if planned == comic.Filename {
		return planned, nil
	}

	dst, err := nextFreePath(planned)
	if err != nil {
		return "", services.Wrap(services.ErrAdaptor, "organize", "allocate_destination",
			"unable to allocate destination filename", err)
	}

	if err := fileutil.MoveFile(comic.Filename, dst); err != nil {
		return "", services.Wrap(services.ErrAdaptor, "organize", "move_archive",
			fmt.Sprintf("move %s", filepath.Base(comic.Filename)), err)
	}
	o.logger.Info("archive moved",
		logging.Int64(logging.FieldComicID, comic.ID),
		logging.String("from", comic.Filename),
		logging.String("to", dst))

	o.moveSidecar(comic.Filename, dst)
	return dst, nil
}

// moveSidecar relocates a metadata file sharing the archive's basename.
// Sidecar failures never fail the organize run.
func (o *Organizer) moveSidecar(oldArchive, newArchive string) {
	for _, ext := range []string{".xml", ".json"} {
		sidecar := strings.TrimSuffix(oldArchive, filepath.Ext(oldArchive)) + ext
		if !fileutil.Exists(sidecar) {
			continue
		}
		dst := strings.TrimSuffix(newArchive, filepath.Ext(newArchive)) + ext
		if err := fileutil.MoveFile(sidecar, dst); err != nil {
			o.logger.Warn("sidecar move failed",
				logging.String("sidecar", sidecar),
				logging.Error(err))
		}
	}
}

func (o *Organizer) render(rule string, comic *library.Comic) string {
	series := strings.TrimSpace(comic.Series)
	if series == "" {
		base := filepath.Base(comic.Filename)
		series = strings.TrimSuffix(base, filepath.Ext(base))
	}
	series = o.caser.String(series)

	year := ""
	if comic.Year > 0 {
		year = strconv.Itoa(comic.Year)
	}

	replacer := strings.NewReplacer(
		"{series}", textutil.SanitizeComponent(series),
		"{title}", textutil.SanitizeComponent(strings.TrimSpace(comic.Title)),
		"{number}", textutil.SanitizeComponent(strings.TrimSpace(comic.Number)),
		"{year}", year,
	)

	// An unscraped comic leaves "()" and "#" husks behind; trimming them
	// lets "{series} #{number} ({year})" degrade to just the series name.
	return textutil.TrimHusks(replacer.Replace(rule))
}

// nextFreePath returns planned if nothing occupies it, otherwise the first
// "name (n).ext" variant that is free.
func nextFreePath(planned string) (string, error) {
	if _, err := os.Stat(planned); err != nil {
		if os.IsNotExist(err) {
			return planned, nil
		}
		return "", err
	}

	ext := filepath.Ext(planned)
	stem := strings.TrimSuffix(planned, ext)
	const maxAttempts = 10000
	for n := 2; n < maxAttempts; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted filename slots for %s", planned)
}
