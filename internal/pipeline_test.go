package internal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hbomb79/synthmocap/internal"
	"github.com/hbomb79/synthmocap/internal/fetch"
	"github.com/hbomb79/synthmocap/internal/reconcile"
	"github.com/hbomb79/synthmocap/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mpiiURL  = "https://download.is.tue.mpg.de/download.php"
	synthURL = "https://example.com/sga-2024-synthmocap"
)

type fakeFetcher struct {
	t        *testing.T
	archives map[string]func(path string)
	requests []fetch.Request
	failOn   string
}

func (fetcher *fakeFetcher) Fetch(_ context.Context, request fetch.Request) error {
	fetcher.requests = append(fetcher.requests, request)
	name := filepath.Base(request.OutputPath)
	if name == fetcher.failOn {
		return errors.New("connection reset")
	}

	build, ok := fetcher.archives[name]
	require.Truef(fetcher.t, ok, "unexpected fetch of %s", name)
	require.NoError(fetcher.t, os.MkdirAll(filepath.Dir(request.OutputPath), 0o755))
	build(request.OutputPath)
	return nil
}

type fakePrompter struct {
	calls int
	creds fetch.Credentials
}

func (prompter *fakePrompter) Prompt() (fetch.Credentials, error) {
	prompter.calls++
	return prompter.creds, nil
}

func newConfig(t *testing.T, dataset string) internal.Config {
	return internal.Config{
		OutputDir: filepath.Join(t.TempDir(), "data"),
		Dataset:   dataset,
		Sources: internal.SourceConfig{
			MpiiURL:           mpiiURL,
			SynthURL:          synthURL,
			SynthParts:        2,
			AmassDomain:       "amass",
			AmassPath:         "amass_per_dataset/smplh/gender_specific/mosh_results",
			ManoDomain:        "mano",
			MoshArchive:       "MoSh",
			PoseLimitsArchive: "PosePrior",
			ManoArchive:       "manoposesv10",
		},
	}
}

// fileBytes writes a fixture to a scratch file using the writer
// provided and returns its content.
func fileBytes(t *testing.T, name string, write func(path string)) []byte {
	path := filepath.Join(t.TempDir(), name)
	write(path)
	return helpers.ReadFile(t, path)
}

// licensedArchives builds the fake AMASS and MANO downloads. The MoSh
// archive holds a single 120fps sequence of 24 frames.
func licensedArchives(t *testing.T) map[string]func(string) {
	sequence := fileBytes(t, "seq.npz", func(p string) { helpers.WriteSequence(t, p, 120, 24, 52) })
	left := fileBytes(t, "L.npy", func(p string) { helpers.WriteLibrary(t, p, 6, false) })
	right := fileBytes(t, "R.npy", func(p string) { helpers.WriteLibrary(t, p, 6, true) })

	return map[string]func(string){
		"MoSh.tar.bz2": func(p string) {
			helpers.WriteTarBz2(t, p, map[string][]byte{"MPI_mosh/subjectA/seqB_poses.npz": sequence})
		},
		"PosePrior.tar.bz2": func(p string) {
			helpers.WriteTarBz2(t, p, map[string][]byte{"MPI_Limits/README.txt": []byte("limits")})
		},
		"manoposesv10.zip": func(p string) {
			helpers.WriteZip(t, p, map[string][]byte{
				"mano_poses_v1_0/handsOnly_REGISTRATIONS_r_lm___POSES___L.npy": left,
				"mano_poses_v1_0/handsOnly_REGISTRATIONS_r_lm___POSES___R.npy": right,
			})
		},
	}
}

func Test_Pipeline_BodyDatasetEndToEnd(t *testing.T) {
	pose := helpers.RecordPose()
	pose[reconcile.BodyStart] = "MoSh_MPI_MoSh/subjectA/seqB_0005_0"
	pose[reconcile.LeftHandStart] = "mano_2"
	pose[reconcile.RightHandStart] = "mano_4"
	referencing := fileBytes(t, "a.json", func(p string) { helpers.WriteRecord(t, p, pose) })
	numeric := fileBytes(t, "b.json", func(p string) { helpers.WriteRecord(t, p, helpers.RecordPose()) })

	archives := licensedArchives(t)
	archives["synth_body_01.zip"] = func(p string) {
		helpers.WriteZip(t, p, map[string][]byte{"metadata_000000.json": referencing})
	}
	archives["synth_body_02.zip"] = func(p string) {
		helpers.WriteZip(t, p, map[string][]byte{"metadata_000001.json": numeric})
	}

	config := newConfig(t, internal.DatasetBody)
	fetcher := &fakeFetcher{t: t, archives: archives}
	prompter := &fakePrompter{creds: fetch.Credentials{Username: "user", Password: "pw"}}

	require.NoError(t, internal.NewPipeline(config, fetcher, prompter).Run(context.Background()))

	assert.Equal(t, 2, prompter.calls, "credentials should be requested once for AMASS and once for MANO")
	require.Len(t, fetcher.requests, 5)
	assert.Equal(t, mpiiURL+"?domain=amass&resume=1&sfile=amass_per_dataset%2Fsmplh%2Fgender_specific%2Fmosh_results%2FMoSh.tar.bz2", fetcher.requests[0].URL)
	assert.Equal(t, "password=pw&username=user", fetcher.requests[0].PostData)
	assert.Equal(t, mpiiURL+"?domain=mano&resume=1&sfile=manoposesv10.zip", fetcher.requests[2].URL)
	assert.Equal(t, synthURL+"/synth_body_01.zip", fetcher.requests[3].URL)
	assert.Equal(t, filepath.Join(config.OutputDir, "synth_body_zip", "synth_body_02.zip"), fetcher.requests[4].OutputPath)
	assert.Empty(t, fetcher.requests[4].PostData)

	for _, removed := range []string{"MoSh.tar.bz2", "PosePrior.tar.bz2", "manoposesv10.zip", "synth_body_zip"} {
		_, err := os.Stat(filepath.Join(config.OutputDir, removed))
		assert.Truef(t, os.IsNotExist(err), "%s should have been removed", removed)
	}
	assert.FileExists(t, filepath.Join(config.OutputDir, "MoSh", "MPI_mosh", "subjectA", "seqB_poses.npz"))
	assert.FileExists(t, filepath.Join(config.OutputDir, "PosePrior", "MPI_Limits", "README.txt"))

	records := filepath.Join(config.OutputDir, "synth_body")
	out := helpers.ReadPose(t, filepath.Join(records, "metadata_000000.json"))
	require.Len(t, out, reconcile.PoseLength)
	assert.Equal(t, []float64{-1, -1, -1}, helpers.ReadVector(t, out[0]))
	assert.Equal(t, []float64{helpers.SequenceValue(20, 7, 0), helpers.SequenceValue(20, 7, 1), helpers.SequenceValue(20, 7, 2)}, helpers.ReadVector(t, out[7]))
	assert.Equal(t, []float64{helpers.LibraryValue(2, 0, 0, false), helpers.LibraryValue(2, 0, 1, false), helpers.LibraryValue(2, 0, 2, false)}, helpers.ReadVector(t, out[reconcile.LeftHandStart]))
	assert.Equal(t, []float64{helpers.LibraryValue(4, 14, 0, true), helpers.LibraryValue(4, 14, 1, true), helpers.LibraryValue(4, 14, 2, true)}, helpers.ReadVector(t, out[reconcile.PoseLength-1]))

	assert.Equal(t, numeric, helpers.ReadFile(t, filepath.Join(records, "metadata_000001.json")), "records without references must not be rewritten")
}

func Test_Pipeline_FaceDatasetSkipsReconcile(t *testing.T) {
	pose := helpers.RecordPose()
	pose[reconcile.BodyStart] = "MoSh_MPI_MoSh/subjectA/missing_0001_0"
	record := fileBytes(t, "a.json", func(p string) { helpers.WriteRecord(t, p, pose) })

	archives := licensedArchives(t)
	archives["synth_face_01.zip"] = func(p string) {
		helpers.WriteZip(t, p, map[string][]byte{"metadata_000000.json": record})
	}
	archives["synth_face_02.zip"] = func(p string) {
		helpers.WriteZip(t, p, map[string][]byte{"metadata_000001.json": record})
	}

	config := newConfig(t, internal.DatasetFace)
	config.Credentials = internal.CredentialsConfig{Username: "env-user", Password: "env-pw"}
	prompter := &fakePrompter{}

	err := internal.NewPipeline(config, &fakeFetcher{t: t, archives: archives}, prompter).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, prompter.calls, "configured credentials should not prompt")

	// The unresolvable reference is left alone as face records are not reconciled.
	assert.Equal(t, record, helpers.ReadFile(t, filepath.Join(config.OutputDir, "synth_face", "metadata_000000.json")))
}

func Test_Pipeline_FetchFailureStopsPipeline(t *testing.T) {
	archives := licensedArchives(t)
	archives["synth_hand_01.zip"] = func(p string) {
		helpers.WriteZip(t, p, map[string][]byte{"a.json": []byte("{}")})
	}

	config := newConfig(t, internal.DatasetHand)
	fetcher := &fakeFetcher{t: t, archives: archives, failOn: "synth_hand_02.zip"}
	prompter := &fakePrompter{creds: fetch.Credentials{Username: "user", Password: "pw"}}

	err := internal.NewPipeline(config, fetcher, prompter).Run(context.Background())
	require.Error(t, err)
	assert.Regexp(t, `^stage fetch-dataset \([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\) failed: connection reset$`, err.Error(),
		"the error should carry the stage id logged when the stage started")

	// Parts fetched before the failure remain so a later run can resume.
	assert.FileExists(t, filepath.Join(config.OutputDir, "synth_hand_zip", "synth_hand_01.zip"))
	_, statErr := os.Stat(filepath.Join(config.OutputDir, "synth_hand"))
	assert.True(t, os.IsNotExist(statErr), "dataset should not be extracted after a failed fetch")
}

func Test_Pipeline_MissingCredentials(t *testing.T) {
	config := newConfig(t, internal.DatasetBody)
	fetcher := &fakeFetcher{t: t, archives: licensedArchives(t)}

	err := internal.NewPipeline(config, fetcher, nil).Run(context.Background())
	assert.ErrorIs(t, err, fetch.ErrNoCredentials)
	assert.Empty(t, fetcher.requests)
}

func Test_Pipeline_PartialCredentialsPrompt(t *testing.T) {
	config := newConfig(t, internal.DatasetBody)
	config.Credentials = internal.CredentialsConfig{Username: "env-user"}
	fetcher := &fakeFetcher{t: t, archives: licensedArchives(t), failOn: "MoSh.tar.bz2"}
	prompter := &fakePrompter{creds: fetch.Credentials{Username: "user", Password: "pw"}}

	err := internal.NewPipeline(config, fetcher, prompter).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, prompter.calls, "a username without a password should not be used")
	require.Len(t, fetcher.requests, 1)
	assert.Equal(t, "password=pw&username=user", fetcher.requests[0].PostData)
}

func Test_Pipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{t: t}
	err := internal.NewPipeline(newConfig(t, internal.DatasetBody), fetcher, &fakePrompter{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.requests)
}
