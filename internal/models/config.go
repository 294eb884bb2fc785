package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRatio is returned when the self-learning blend ratio is outside [0, 1].
var ErrInvalidRatio = errors.New("self-learning ratio must be within [0, 1]")

// RecognitionConfig holds the per-session recognition options sent to the
// backend during the handshake. Identifiers are opaque to the client; an
// empty identifier means the feature is not requested.
type RecognitionConfig struct {
	HotWordID                      string  `yaml:"hotWordId"`
	EnablePunctuation              bool    `yaml:"enablePunctuation"`
	EnableIntermediateResult       bool    `yaml:"enableIntermediateResult"`
	SelfLearningModelID            string  `yaml:"selfLearningModelId"`
	SelfLearningRatio              float64 `yaml:"selfLearningRatio"`
	EnableInverseTextNormalization bool    `yaml:"enableInverseTextNormalization"`
}

// DefaultRecognitionConfig returns the options most callers want.
func DefaultRecognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		EnablePunctuation:              true,
		EnableIntermediateResult:       true,
		EnableInverseTextNormalization: true,
	}
}

// HasSelfLearningModel reports whether a self-learning model is requested.
func (c RecognitionConfig) HasSelfLearningModel() bool {
	return c.SelfLearningModelID != ""
}

// Normalized returns a copy with the blend ratio cleared when no
// self-learning model is set.
func (c RecognitionConfig) Normalized() RecognitionConfig {
	if !c.HasSelfLearningModel() {
		c.SelfLearningRatio = 0
	}
	return c
}

// Validate checks the options. The ratio is only validated when a
// self-learning model is set.
func (c RecognitionConfig) Validate() error {
	r := c.SelfLearningRatio
	if c.HasSelfLearningModel() && (math.IsNaN(r) || r < 0 || r > 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidRatio, c.SelfLearningRatio)
	}
	return nil
}
