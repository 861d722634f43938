package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hbomb79/synthmocap/internal"
	"github.com/hbomb79/synthmocap/internal/fetch"
	"github.com/hbomb79/synthmocap/internal/reconcile"
	"github.com/hbomb79/synthmocap/pkg/logger"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var log = logger.Get("Bootstrap")

var (
	// Global flags
	verbose    bool
	configPath string

	outputDir string
	dataset   string

	// Reconcile flags
	dataDir      string
	poseLibrary  string
	sequenceRoot string
)

var rootCmd = &cobra.Command{
	Use:   "synthmocap",
	Short: "Download and prepare the SynthMoCap datasets",
	Long: `Downloads the licensed AMASS and MANO archives, downloads and extracts
one of the SynthMoCap datasets, and fills in the body and hand poses which
the dataset metadata references symbolically.

AMASS and MANO require an MPII account. Credentials are prompted for, or
read from MPII_USERNAME and MPII_PASSWORD.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetMinLoggingLevel(logger.DEBUG.Level())
		}
	},
	RunE: runPipeline,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve the pose references of an already extracted dataset",
	Long: `Rewrites every metadata record in --data_dir, replacing symbolic body
and hand pose references with the rotations they refer to. The AMASS
archives must already be extracted under --sequence_root, which defaults
to the parent of --data_dir.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.Flags().StringVar(&outputDir, "output_dir", "", "Directory the dataset is prepared in")
	rootCmd.Flags().StringVar(&dataset, "dataset", "", "Dataset to prepare (face, body or hand)")

	reconcileCmd.Flags().StringVar(&dataDir, "data_dir", "", "Directory containing the metadata records")
	reconcileCmd.Flags().StringVar(&poseLibrary, "pose_library", "", "Directory the MANO pose archive was extracted in to")
	reconcileCmd.Flags().StringVar(&sequenceRoot, "sequence_root", "", "Directory the AMASS archives were extracted in to")
	_ = reconcileCmd.MarkFlagRequired("data_dir")

	rootCmd.AddCommand(reconcileCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Emit(logger.FATAL, "%v\n", err)
		cancel()
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	config, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("output_dir") {
		config.OutputDir = outputDir
	}
	if cmd.Flags().Changed("dataset") {
		config.Dataset = dataset
	}
	if err := config.Validate(); err != nil {
		return err
	}

	fetcher := fetch.New(config.Fetch)
	return internal.NewPipeline(*config, fetcher, fetch.NewTerminalPrompter()).Run(cmd.Context())
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	records, err := homedir.Expand(dataDir)
	if err != nil {
		return err
	}

	root := sequenceRoot
	if root == "" {
		root = filepath.Dir(filepath.Clean(records))
	}
	if root, err = homedir.Expand(root); err != nil {
		return err
	}

	libraryDir := poseLibrary
	if libraryDir == "" {
		libraryDir = filepath.Join(root, reconcile.PoseLibraryDir)
	}
	if libraryDir, err = homedir.Expand(libraryDir); err != nil {
		return err
	}

	library, err := reconcile.LoadPoseLibrary(libraryDir)
	if err != nil {
		return fmt.Errorf("failed to load pose library: %w", err)
	}

	summary, err := reconcile.New(reconcile.Config{SequenceRoot: root}, library).Run(cmd.Context(), records)
	if err != nil {
		return err
	}

	log.Emit(logger.SUCCESS, "Reconciled %d records: %d body, %d left hand, %d right hand\n",
		summary.Records, summary.Body, summary.LeftHand, summary.RightHand)
	return nil
}
