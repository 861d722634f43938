package internal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/synthmocap/internal/archive"
	"github.com/hbomb79/synthmocap/internal/fetch"
	"github.com/hbomb79/synthmocap/internal/reconcile"
	"github.com/hbomb79/synthmocap/pkg/logger"
)

var log = logger.Get("Pipeline")

var licensedArchivePatterns = []string{"*" + archive.ZipExt, "*" + archive.TarBz2Ext}

type (
	Fetcher interface {
		Fetch(context.Context, fetch.Request) error
	}

	CredentialPrompter interface {
		Prompt() (fetch.Credentials, error)
	}

	// Pipeline prepares a complete SynthMoCap dataset in the configured
	// output directory: the licensed AMASS and MANO archives are fetched
	// and unpacked, the dataset parts are fetched and unpacked, and the
	// symbolic pose references in the dataset metadata are resolved.
	Pipeline struct {
		config   Config
		fetcher  Fetcher
		prompter CredentialPrompter
	}

	stage struct {
		name string
		run  func(context.Context) error
	}
)

func NewPipeline(config Config, fetcher Fetcher, prompter CredentialPrompter) *Pipeline {
	return &Pipeline{config: config, fetcher: fetcher, prompter: prompter}
}

// Run executes each stage of the pipeline in order. The first stage
// to fail stops the pipeline; files already produced are left in
// place so that a subsequent run can resume.
func (pipeline *Pipeline) Run(ctx context.Context) error {
	log.Emit(logger.DEBUG, "Running pipeline using config: %#v\n", pipeline.config.Sources)
	if err := os.MkdirAll(pipeline.config.OutputDir, os.ModeDir|os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stages := []stage{
		{"fetch-amass", pipeline.fetchAmass},
		{"fetch-mano", pipeline.fetchMano},
		{"extract-licensed", pipeline.extractLicensed},
		{"fetch-dataset", pipeline.fetchDataset},
		{"extract-dataset", pipeline.extractDataset},
	}
	if pipeline.config.RequiresReconcile() {
		stages = append(stages, stage{"reconcile", pipeline.reconcile})
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := uuid.New()
		start := time.Now()
		log.Emit(logger.NEW, "Starting stage %s (%s)\n", s.name, id)
		if err := s.run(ctx); err != nil {
			log.Emit(logger.ERROR, "Stage %s (%s) failed: %v\n", s.name, id, err)
			return fmt.Errorf("stage %s (%s) failed: %w", s.name, id, err)
		}
		log.Emit(logger.SUCCESS, "Stage %s (%s) completed in %s\n", s.name, id, time.Since(start).Round(time.Millisecond))
	}

	log.Emit(logger.SUCCESS, "Dataset %s is ready in %s\n", pipeline.config.DatasetName(), pipeline.config.OutputDir)
	return nil
}

func (pipeline *Pipeline) fetchAmass(ctx context.Context) error {
	sources := pipeline.config.Sources
	creds, err := pipeline.credentials("AMASS")
	if err != nil {
		return err
	}

	for _, name := range []string{sources.MoshArchive, sources.PoseLimitsArchive} {
		file := name + archive.TarBz2Ext
		if err := pipeline.fetchLicensed(ctx, sources.AmassDomain, path.Join(sources.AmassPath, file), file, creds); err != nil {
			return err
		}
	}

	return nil
}

func (pipeline *Pipeline) fetchMano(ctx context.Context) error {
	sources := pipeline.config.Sources
	creds, err := pipeline.credentials("MANO")
	if err != nil {
		return err
	}

	file := sources.ManoArchive + archive.ZipExt
	return pipeline.fetchLicensed(ctx, sources.ManoDomain, file, file, creds)
}

func (pipeline *Pipeline) fetchLicensed(ctx context.Context, domain, remoteFile, localFile string, creds fetch.Credentials) error {
	requestURL, err := mpiiURL(pipeline.config.Sources.MpiiURL, domain, remoteFile)
	if err != nil {
		return err
	}

	return pipeline.fetcher.Fetch(ctx, fetch.Request{
		URL:        requestURL,
		OutputPath: filepath.Join(pipeline.config.OutputDir, localFile),
		PostData:   creds.PostData(),
	})
}

// extractLicensed unpacks every archive directly inside the output
// directory, removing each once extracted.
func (pipeline *Pipeline) extractLicensed(ctx context.Context) error {
	var archives []string
	for _, pattern := range licensedArchivePatterns {
		matches, err := filepath.Glob(filepath.Join(pipeline.config.OutputDir, pattern))
		if err != nil {
			return err
		}
		archives = append(archives, matches...)
	}

	return extractAll(ctx, archives, "")
}

func (pipeline *Pipeline) fetchDataset(ctx context.Context) error {
	zipDir := pipeline.zipDir()
	for part := 1; part <= pipeline.config.Sources.SynthParts; part++ {
		file := fmt.Sprintf("%s_%02d%s", pipeline.config.DatasetName(), part, archive.ZipExt)
		err := pipeline.fetcher.Fetch(ctx, fetch.Request{
			URL:        pipeline.config.Sources.SynthURL + "/" + file,
			OutputPath: filepath.Join(zipDir, file),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// extractDataset merges every downloaded part in to the dataset
// directory, then removes the parts and the directory holding them.
func (pipeline *Pipeline) extractDataset(ctx context.Context) error {
	zipDir := pipeline.zipDir()
	parts, err := filepath.Glob(filepath.Join(zipDir, "*"+archive.ZipExt))
	if err != nil {
		return err
	}

	if err := extractAll(ctx, parts, pipeline.datasetDir()); err != nil {
		return err
	}

	if err := os.Remove(zipDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", zipDir, err)
	}

	return nil
}

func (pipeline *Pipeline) reconcile(ctx context.Context) error {
	sources := pipeline.config.Sources
	library, err := reconcile.LoadPoseLibrary(filepath.Join(pipeline.config.OutputDir, sources.ManoArchive))
	if err != nil {
		return err
	}

	reconciler := reconcile.New(reconcile.Config{
		SequenceRoot: pipeline.config.OutputDir,
		Families:     pipeline.families(),
		CacheEntries: pipeline.config.Reconcile.SequenceCacheEntries,
	}, library)

	summary, err := reconciler.Run(ctx, pipeline.datasetDir())
	if err != nil {
		return err
	}

	log.Emit(logger.INFO, "Resolved %d body, %d left hand and %d right hand references\n", summary.Body, summary.LeftHand, summary.RightHand)
	return nil
}

// families returns the default sequence families, with each archive
// directory following the configured archive names.
func (pipeline *Pipeline) families() []reconcile.Family {
	dirs := map[string]string{
		reconcile.DefaultFamilies[0].ArchiveDir: pipeline.config.Sources.MoshArchive,
		reconcile.DefaultFamilies[1].ArchiveDir: pipeline.config.Sources.PoseLimitsArchive,
	}

	families := make([]reconcile.Family, len(reconcile.DefaultFamilies))
	for i, family := range reconcile.DefaultFamilies {
		if dir, ok := dirs[family.ArchiveDir]; ok {
			family.ArchiveDir = dir
		}
		families[i] = family
	}

	return families
}

// credentials returns the configured MPII credentials, prompting for
// them if none were configured.
func (pipeline *Pipeline) credentials(source string) (fetch.Credentials, error) {
	if creds := pipeline.config.Credentials.credentials(); !creds.IsZero() {
		return creds, nil
	}

	if pipeline.prompter == nil {
		return fetch.Credentials{}, fmt.Errorf("%w for %s", fetch.ErrNoCredentials, source)
	}

	log.Emit(logger.INFO, "Please enter your %s credentials\n", source)
	creds, err := pipeline.prompter.Prompt()
	if err != nil {
		return fetch.Credentials{}, fmt.Errorf("failed to read %s credentials: %w", source, err)
	}

	return creds, nil
}

func (pipeline *Pipeline) datasetDir() string {
	return filepath.Join(pipeline.config.OutputDir, pipeline.config.DatasetName())
}

func (pipeline *Pipeline) zipDir() string {
	return pipeline.datasetDir() + "_zip"
}

// extractAll extracts each archive in turn, deleting it once extracted.
// An empty dest extracts each archive beside itself, see
// archive.DefaultDestination.
func extractAll(ctx context.Context, archives []string, dest string) error {
	for _, archivePath := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := archive.Extract(archivePath, dest); err != nil {
			return err
		}

		if err := os.Remove(archivePath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", archivePath, err)
		}
	}

	return nil
}

func mpiiURL(base, domain, file string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %s: %w", base, err)
	}

	u.RawQuery = url.Values{"domain": {domain}, "resume": {"1"}, "sfile": {file}}.Encode()
	return u.String(), nil
}
