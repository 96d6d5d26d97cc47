// Package bundle stores named model bundles and routes callers to them.
//
// A bundle is the unit of an experiment arm: a predictor artifact, a feature
// transformer artifact and a blending config stored together under one name.
// A bundle is available only when all three artifacts are present.
package bundle

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/onnwee/listrank/internal/model"
	"github.com/onnwee/listrank/internal/ranking"
)

// Canonical artifact file names.
const (
	FilePredictor   = "model.json"
	FileTransformer = "transformer.json"
	FileConfig      = "config.json"
)

// DefaultMaxModels is the number of bundles that can be deployed at once.
const DefaultMaxModels = 2

// MaxNameLength bounds bundle names.
const MaxNameLength = 64

// RequiredArtifacts lists the artifacts every bundle must carry, in write order.
var RequiredArtifacts = []string{FilePredictor, FileTransformer, FileConfig}

// Bundle errors
var (
	ErrNoModelsAvailable = errors.New("no models available")
	ErrBundleNotFound    = errors.New("model not found")
	ErrTooManyModels     = errors.New("too many models")
	ErrInvalidBundleName = errors.New("invalid model name")
	ErrMissingArtifact   = errors.New("missing artifact")
	ErrInvalidArtifact   = errors.New("invalid artifact")
)

// Artifact is one named file of a bundle.
type Artifact struct {
	Filename string
	Data     []byte
}

// Bundle is a loaded, ready-to-score model bundle.
type Bundle struct {
	Name        string
	Predictor   model.Predictor
	Transformer model.FeatureTransformer
	Config      ranking.BlendConfig
}

// ValidateName checks that name is usable as a bundle name: 1 to
// MaxNameLength characters of letters, digits, '-', '_' or '.', not starting
// with '.'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBundleName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidBundleName, MaxNameLength)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: name must not start with '.'", ErrInvalidBundleName)
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return fmt.Errorf("%w: %q contains %q", ErrInvalidBundleName, name, r)
	}
	return nil
}

// CheckArtifacts verifies that artifacts holds exactly the required files
// under their canonical names and returns them keyed by file name.
func CheckArtifacts(artifacts []Artifact) (map[string][]byte, error) {
	byName := make(map[string][]byte, len(artifacts))
	for _, a := range artifacts {
		if !slices.Contains(RequiredArtifacts, a.Filename) {
			return nil, fmt.Errorf("%w: unexpected file %q, files must be named %s", ErrMissingArtifact, a.Filename, strings.Join(RequiredArtifacts, ", "))
		}
		if _, dup := byName[a.Filename]; dup {
			return nil, fmt.Errorf("%w: %q supplied twice", ErrMissingArtifact, a.Filename)
		}
		byName[a.Filename] = a.Data
	}
	for _, name := range RequiredArtifacts {
		data, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s is required", ErrMissingArtifact, name)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrMissingArtifact, name)
		}
	}
	return byName, nil
}

// Decode builds a Bundle from artifact contents keyed by file name.
// Config problems surface as ranking.ErrInvalidConfig; predictor and
// transformer problems as ErrInvalidArtifact.
func Decode(name string, files map[string][]byte) (*Bundle, error) {
	cfg, err := ranking.ParseBlendConfig(files[FileConfig])
	if err != nil {
		return nil, err
	}
	predictor, err := model.DecodePredictor(files[FilePredictor])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, FilePredictor, err)
	}
	transformer, err := model.DecodeTransformer(files[FileTransformer])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, FileTransformer, err)
	}
	return &Bundle{
		Name:        name,
		Predictor:   predictor,
		Transformer: transformer,
		Config:      cfg,
	}, nil
}
