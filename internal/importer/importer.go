// Package importer builds tune records from the tags of an audio file
// collection, so an existing recording library seeds the practice catalog
// without manual entry.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

// AudioExtensions are the supported audio file extensions
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv",  // WavPack
	".mpc", // Musepack
}

// tuneNamespace seeds deterministic tune IDs: re-importing the same
// collection on any device yields the same IDs, so sync converges instead
// of duplicating tunes.
var tuneNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Importer scans a directory tree for audio files and upserts tunes
type Importer struct {
	store      *store.Store
	extensions map[string]bool
	logger     *report.EventLogger
}

// Config holds importer configuration
type Config struct {
	Store          *store.Store
	AdditionalExts []string
	Logger         *report.EventLogger
}

// New creates a new Importer
func New(cfg *Config) *Importer {
	extMap := make(map[string]bool)
	for _, ext := range AudioExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		extMap[strings.ToLower(ext)] = true
	}

	return &Importer{
		store:      cfg.Store,
		extensions: extMap,
		logger:     cfg.Logger,
	}
}

// Result summarizes an import run
type Result struct {
	TunesImported int
	TunesSkipped  int
	FilesIgnored  int
	Errors        []error
}

// Import walks sourcePath, reads tags from each audio file, and upserts a
// tune per unique (title, composer). Files whose tune already exists with
// identical metadata are skipped, so re-importing is idempotent and emits
// no outbox noise. When playlistID is non-empty every imported tune is
// also linked into that playlist.
func (im *Importer) Import(ctx context.Context, sourcePath, playlistID string) (*Result, error) {
	util.InfoLog("Starting import of: %s", sourcePath)

	if playlistID != "" {
		playlist, err := im.store.GetPlaylist(playlistID)
		if err != nil {
			return nil, fmt.Errorf("failed to load playlist: %w", err)
		}
		if playlist == nil {
			return nil, fmt.Errorf("%w: playlist %s", util.ErrNotFound, playlistID)
		}
	}

	result := &Result{}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	walkErr := filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !im.extensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesIgnored++
			return nil
		}

		if bar != nil {
			bar.Add(1)
		}

		imported, err := im.importFile(path, playlistID)
		if err != nil {
			util.ErrorLog("Failed to import %s: %v", path, err)
			result.Errors = append(result.Errors, err)
			return nil
		}
		if imported {
			result.TunesImported++
		} else {
			result.TunesSkipped++
		}
		return nil
	})

	if bar != nil {
		bar.Finish()
	}

	if walkErr != nil && walkErr != context.Canceled {
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.SuccessLog("Import complete: %d tunes imported, %d skipped, %d non-audio ignored, %d errors",
		result.TunesImported, result.TunesSkipped, result.FilesIgnored, len(result.Errors))

	return result, nil
}

// importFile upserts the tune described by one audio file.
// Returns (imported, error); imported is false for an up-to-date tune.
func (im *Importer) importFile(path, playlistID string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return false, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	title := strings.TrimSpace(meta.Title())
	if title == "" {
		// Fall back to the filename without extension
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	composer := strings.TrimSpace(meta.Composer())
	if composer == "" {
		composer = strings.TrimSpace(meta.Artist())
	}

	tune := &store.Tune{
		ID:       TuneID(title, composer),
		Title:    title,
		Composer: composer,
		Genre:    strings.TrimSpace(meta.Genre()),
	}

	existing, err := im.store.GetTune(tune.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing tune: %w", err)
	}

	changed := existing == nil ||
		existing.Title != tune.Title ||
		existing.Composer != tune.Composer ||
		existing.Genre != tune.Genre
	if changed {
		if existing != nil {
			// Keep fields the importer does not know about
			tune.Type = existing.Type
			tune.Mode = existing.Mode
			tune.Structure = existing.Structure
			tune.Incipit = existing.Incipit
		}
		if err := im.store.UpsertTune(tune); err != nil {
			return false, fmt.Errorf("failed to upsert tune: %w", err)
		}
		im.logger.LogImport(tune.ID, tune.Title, path)
		util.DebugLog("Imported: %s (%s)", tune.Title, tune.ID[:8])
	}

	if playlistID != "" {
		link, err := im.store.GetPlaylistTune(playlistID, tune.ID)
		if err != nil {
			return false, fmt.Errorf("failed to check playlist link: %w", err)
		}
		if link == nil {
			if err := im.store.AddTuneToPlaylist(playlistID, tune.ID, ""); err != nil {
				return false, fmt.Errorf("failed to link tune: %w", err)
			}
		}
	}

	return changed, nil
}

// TuneID derives the stable tune ID for a (title, composer) pair.
func TuneID(title, composer string) string {
	key := strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(composer))
	return uuid.NewSHA1(tuneNamespace, []byte(key)).String()
}
