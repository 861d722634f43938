package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/synthmocap/internal/fetch"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const (
	DatasetFace = "face"
	DatasetBody = "body"
	DatasetHand = "hand"
)

// Config is the struct used to contain the various user config
// supplied by file, environment, or the command line.
type Config struct {
	OutputDir   string            `yaml:"output_dir" env:"SYNTHMOCAP_OUTPUT_DIR" validate:"required"`
	Dataset     string            `yaml:"dataset" env:"SYNTHMOCAP_DATASET" validate:"required,oneof=face body hand"`
	Sources     SourceConfig      `yaml:"sources"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Fetch       fetch.Config      `yaml:"fetch"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
}

// SourceConfig describes where each archive is downloaded from, and
// the names they are published under.
type SourceConfig struct {
	MpiiURL     string `yaml:"mpii_url" env:"MPII_DOWNLOAD_URL" env-default:"https://download.is.tue.mpg.de/download.php" validate:"url"`
	SynthURL    string `yaml:"synth_url" env:"SYNTH_DOWNLOAD_URL" env-default:"https://facesyntheticspubwedata.blob.core.windows.net/sga-2024-synthmocap" validate:"url"`
	SynthParts  int    `yaml:"synth_parts" env:"SYNTH_PARTS" env-default:"15" validate:"min=1,max=99"`
	AmassDomain string `yaml:"amass_domain" env-default:"amass" validate:"required"`
	AmassPath   string `yaml:"amass_path" env-default:"amass_per_dataset/smplh/gender_specific/mosh_results" validate:"required"`
	ManoDomain  string `yaml:"mano_domain" env-default:"mano" validate:"required"`

	MoshArchive       string `yaml:"mosh_archive" env-default:"MoSh" validate:"required"`
	PoseLimitsArchive string `yaml:"pose_limits_archive" env-default:"PosePrior" validate:"required"`
	ManoArchive       string `yaml:"mano_archive" env-default:"manoposesv10" validate:"required"`
}

// CredentialsConfig allows the MPII login to be supplied without
// prompting. Both fields must be set for the values to be used.
type CredentialsConfig struct {
	Username string `yaml:"username" env:"MPII_USERNAME"`
	Password string `yaml:"password" env:"MPII_PASSWORD"`
}

type ReconcileConfig struct {
	// SequenceCacheEntries bounds the number of decoded AMASS sequences
	// held in memory during reconciliation.
	SequenceCacheEntries int `yaml:"sequence_cache_entries" env:"RECONCILE_CACHE_ENTRIES" env-default:"64"`
}

// LoadConfig populates a Config from the YAML file at the path provided
// (if any), then the environment. Defaults are applied to any
// unset values.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s - %v", configPath, err.Error())
		}
	} else if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment - %v", err.Error())
	}

	return config, nil
}

// Validate expands the output directory and checks the configuration
// is complete. It must be called after any command line overrides have
// been applied.
func (config *Config) Validate() error {
	if config.OutputDir != "" {
		expanded, err := homedir.Expand(config.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to expand output directory %s: %w", config.OutputDir, err)
		}
		config.OutputDir = expanded
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// DatasetName is the name the selected dataset is published under.
func (config *Config) DatasetName() string {
	return "synth_" + config.Dataset
}

// RequiresReconcile is true for datasets whose metadata contains
// symbolic pose references.
func (config *Config) RequiresReconcile() bool {
	return config.Dataset == DatasetBody || config.Dataset == DatasetHand
}

// credentials returns the configured login, or zero Credentials unless
// both the username and password are set.
func (c CredentialsConfig) credentials() fetch.Credentials {
	if c.Username == "" || c.Password == "" {
		return fetch.Credentials{}
	}

	return fetch.Credentials{Username: c.Username, Password: c.Password}
}
