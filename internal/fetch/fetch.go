package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hbomb79/synthmocap/pkg/logger"
)

var log = logger.Get("Fetch")

const DefaultWgetBinPath = "wget"

var ErrToolMissing = errors.New("wget not found, please install it")

type (
	Config struct {
		WgetBinPath string `yaml:"wget_bin_path" env:"WGET_BIN_PATH" env-default:"wget"`
	}

	// Request describes a single remote resource to retrieve.
	Request struct {
		URL        string
		OutputPath string
		// PostData, if set, is sent as the body of a POST request. Used
		// to authenticate against the MPII download server.
		PostData string
	}

	// TransferError is returned when wget exits unsuccessfully. The
	// partially downloaded file has already been removed.
	TransferError struct {
		URL      string
		ExitCode int
		err      error
	}

	// Fetcher retrieves remote resources by delegating to wget, which
	// provides resumable transfers: re-running a failed fetch continues
	// from the bytes already on disk.
	Fetcher struct {
		config Config
		stdout io.Writer
		stderr io.Writer
	}
)

func New(config Config) *Fetcher {
	if config.WgetBinPath == "" {
		config.WgetBinPath = DefaultWgetBinPath
	}

	return &Fetcher{config: config, stdout: os.Stdout, stderr: os.Stderr}
}

// WithOutput redirects the output of the wget process.
func (fetcher *Fetcher) WithOutput(stdout, stderr io.Writer) *Fetcher {
	fetcher.stdout = stdout
	fetcher.stderr = stderr
	return fetcher
}

// Fetch downloads the resource described by the request, blocking until
// the transfer completes. The parent directory of the output path is
// created if missing.
func (fetcher *Fetcher) Fetch(ctx context.Context, request Request) error {
	bin, err := exec.LookPath(fetcher.config.WgetBinPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(request.OutputPath), os.ModeDir|os.ModePerm); err != nil {
		return err
	}

	log.Emit(logger.NEW, "Downloading %s\n", filepath.Base(request.OutputPath))
	cmd := exec.CommandContext(ctx, bin, request.args()...)
	cmd.Stdout = fetcher.stdout
	cmd.Stderr = fetcher.stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrToolMissing, err.Error())
		}

		// Interrupted transfers keep their partial file so that the next
		// fetch continues from it.
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Emit(logger.STOP, "Download of %s interrupted, keeping partial file for resume\n", filepath.Base(request.OutputPath))
			return fmt.Errorf("download of %s interrupted: %w", request.URL, ctxErr)
		}

		if rmErr := os.Remove(request.OutputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Emit(logger.WARNING, "Failed to remove partial download %s: %v\n", request.OutputPath, rmErr)
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return &TransferError{URL: request.URL, ExitCode: exitCode, err: err}
	}

	log.Emit(logger.SUCCESS, "Downloaded %s\n", filepath.Base(request.OutputPath))
	return nil
}

func (request Request) args() []string {
	args := make([]string, 0, 7)
	if request.PostData != "" {
		args = append(args, "--post-data", request.PostData)
	}

	return append(args, request.URL, "-O", request.OutputPath, "--no-check-certificate", "--continue")
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download of %s failed (exit code %d): %s", e.URL, e.ExitCode, e.err.Error())
}

func (e *TransferError) Unwrap() error { return e.err }
