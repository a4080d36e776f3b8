package training

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/rollcast/core/model"
	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/YuminosukeSato/rollcast/preprocessing"
)

// ArtifactVersion is the version of the gob model file layout.
const ArtifactVersion = 1

// Artifact is the persisted form of a TrainResult: what is needed to
// predict on new data.
type Artifact struct {
	Version    int
	RunID      string
	Kind       string
	Target     string
	Predictors []string
	CatCols    []string
	Encoder    *preprocessing.OneHotEncoder
	Model      model.Regressor
	BestParams map[string]interface{}
	BestScore  float64
}

// Artifact returns the persistable part of r.
func (r *TrainResult) Artifact() *Artifact {
	return &Artifact{
		Version:    ArtifactVersion,
		RunID:      r.RunID,
		Kind:       r.Kind.String(),
		Target:     r.Target,
		Predictors: r.originalPredictors(),
		CatCols:    r.CatCols,
		Encoder:    r.Encoder,
		Model:      r.Model,
		BestParams: r.BestParams,
		BestScore:  r.BestScore,
	}
}

// Predict applies the stored encoder and model to table.
func (a *Artifact) Predict(table *frame.Table) ([]float64, error) {
	return Predict(table, a.Encoder, a.Model, a.Predictors, a.CatCols)
}

// SaveResult writes the artifact of r to path with gob.
func SaveResult(r *TrainResult, path string) error {
	return model.SaveModel(r.Artifact(), path)
}

// LoadModel reads an artifact written by SaveResult.
func LoadModel(path string) (*Artifact, error) {
	var a Artifact
	if err := model.LoadModel(&a, path); err != nil {
		return nil, err
	}
	if a.Version != ArtifactVersion {
		return nil, errors.Newf("unsupported model file version %d", a.Version)
	}
	if a.Model == nil {
		return nil, errors.New("model file contains no model")
	}
	return &a, nil
}

// Report is the YAML summary of a training run.
type Report struct {
	RunID              string                 `yaml:"run_id"`
	Model              string                 `yaml:"model"`
	Target             string                 `yaml:"target"`
	BestScore          float64                `yaml:"best_score"`
	BestParams         map[string]interface{} `yaml:"best_params"`
	FeatureImportances []FeatureImportance    `yaml:"feature_importances"`
	TrainRows          int                    `yaml:"train_rows"`
	TestRows           int                    `yaml:"test_rows"`
	DurationSeconds    float64                `yaml:"duration_seconds"`
}

// Report summarizes r.
func (r *TrainResult) Report() Report {
	rep := Report{
		RunID:              r.RunID,
		Model:              r.Kind.String(),
		Target:             r.Target,
		BestScore:          r.BestScore,
		BestParams:         r.BestParams,
		FeatureImportances: r.FeatureImportances,
		DurationSeconds:    r.Duration.Seconds(),
	}
	if r.Train != nil {
		rep.TrainRows = r.Train.Len()
	}
	if r.Test != nil {
		rep.TestRows = r.Test.Len()
	}
	return rep
}

// WriteReport writes the YAML report of r to w.
func WriteReport(r *TrainResult, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Report()); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return enc.Close()
}

// WriteReportFile writes the YAML report of r to path.
func WriteReportFile(r *TrainResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer f.Close()
	return WriteReport(r, f)
}
