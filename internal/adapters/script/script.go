// Package script implements a decision-maker that replays a recorded list of steps.
// It drives sessions without a model: replays, demos and end-to-end tests.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrExhausted is returned when the transcript asks for more steps than the script has.
var ErrExhausted = errors.New("script has no more steps")

// Step is one scripted decision: optional narration and at most one command.
// A step without a command ends the session.
type Step struct {
	Say     string       `yaml:"say,omitempty" json:"say,omitempty"`
	Command *domain.Call `yaml:"command,omitempty" json:"command,omitempty"`
}

// Script is the file format of a replay.
type Script struct {
	Request string `yaml:"request,omitempty" json:"request,omitempty"`
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
	Steps   []Step `yaml:"steps" json:"steps"`
}

// Load reads a script file (YAML, or JSON by extension).
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	var s Script
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script %s has no steps", path)
	}
	return &s, nil
}

// Consultant replays a script. The step to play is chosen by counting the
// decision-maker messages already in the transcript, so the consultant keeps no
// state and can drive a restored session.
type Consultant struct {
	steps []Step
}

// NewConsultant returns a consultant over the given steps.
func NewConsultant(steps ...Step) *Consultant {
	return &Consultant{steps: steps}
}

// Consult returns the next scripted decision.
func (c *Consultant) Consult(ctx context.Context, transcript *domain.Transcript) (domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decision{}, err
	}

	played := 0
	for _, m := range transcript.Messages() {
		if m.Role == domain.RoleDecisionMaker {
			played++
		}
	}
	if played >= len(c.steps) {
		return domain.Decision{}, fmt.Errorf("%w (step %d of %d)", ErrExhausted, played+1, len(c.steps))
	}

	step := c.steps[played]
	d := domain.Decision{Narration: step.Say}
	if step.Command != nil {
		call := *step.Command
		if call.ID == "" {
			call.ID = "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		d.Call = &call
	}
	return d, nil
}
