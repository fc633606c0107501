package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// requestFlags are the command-line fields of a research request.
type requestFlags struct {
	capability string
	needs      []string
	pipeline   string
	stages     []string
	payload    string
	complexity string
	urgency    string
	policy     string
	priority   int
	agent      string
}

// build turns the flags and the positional description into a request.
func (f requestFlags) build(description string) (models.Request, error) {
	req := models.Request{
		Description:    description,
		Pipeline:       f.pipeline,
		Complexity:     models.Complexity(f.complexity),
		Urgency:        models.Urgency(f.urgency),
		Policy:         models.ContinuationPolicy(f.policy),
		Priority:       f.priority,
		PreferredAgent: strings.TrimSpace(f.agent),
	}

	named := 0
	if f.capability != "" {
		named++
		c, err := models.ParseCapability(f.capability)
		if err != nil {
			return req, err
		}
		req.Capability = c
	}
	if len(f.needs) > 0 {
		named++
		for _, n := range f.needs {
			sr, err := models.ParseNeed(n)
			if err != nil {
				return req, fmt.Errorf("--need %q: %w", n, err)
			}
			req.SubRequests = append(req.SubRequests, sr)
		}
	}
	if f.pipeline != "" {
		named++
	}
	if len(f.stages) > 0 {
		named++
		stages, err := models.ParseCapabilities(f.stages)
		if err != nil {
			return req, fmt.Errorf("--stages: %w", err)
		}
		req.Stages = stages
	}
	if named == 0 {
		return req, fmt.Errorf("one of --capability, --need, --pipeline or --stages is required")
	}
	if named > 1 {
		return req, fmt.Errorf("--capability, --need, --pipeline and --stages are mutually exclusive")
	}

	payload, err := readPayload(f.payload)
	if err != nil {
		return req, err
	}
	req.Payload = payload

	return req, req.Validate()
}

// readPayload accepts inline JSON or @path to a JSON file.
func readPayload(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	data := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}
