package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	"github.com/bryanwahyu/advisor-guard/internal/infra/settingsfile"
)

var errMismatch = eris.New("answer failed validation")

var validateOpts struct {
	metricsFile string
	answer      string
	answerFile  string
	query       string
	settings    string
	mode        string
	constrained bool
	strict      bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an answer against a metrics snapshot and print the correction",
	Example: `  guardctl validate --metrics u-1-2025-08.json --answer "Akeen Jackson had $23,450 in sales in August."
  guardctl validate --metrics scorecard.json --answer-file reply.json --constrained --query "my scorecard"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := validateOpts.answer
		if validateOpts.answerFile != "" {
			b, err := os.ReadFile(validateOpts.answerFile)
			if err != nil {
				return eris.Wrap(err, "read answer")
			}
			text = string(b)
		}
		if text == "" {
			return eris.New("one of --answer or --answer-file is required")
		}

		out, err := validateAnswer(cmd.Context(), text)
		if err != nil && out == nil {
			return err
		}
		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if validateOpts.strict && !out.Result.IsValid {
			return errMismatch
		}
		return nil
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateOpts.metricsFile, "metrics", "", "JSON snapshot: {kind, id, month, year, fields}")
	f.StringVar(&validateOpts.answer, "answer", "", "answer text")
	f.StringVar(&validateOpts.answerFile, "answer-file", "", "read the answer from a file")
	f.StringVar(&validateOpts.query, "query", "", "user query (defaults to the answer text)")
	f.StringVar(&validateOpts.settings, "settings", "", "settings file (defaults to settings.path)")
	f.StringVar(&validateOpts.mode, "mode", string(validation.EnforcementStrict), "enforcement mode: strict, advisory or bypassed")
	f.BoolVar(&validateOpts.constrained, "constrained", false, "the answer is a JSON scorecard reply")
	f.BoolVar(&validateOpts.strict, "fail-on-mismatch", false, "exit non-zero when the answer fails validation")
	_ = validateCmd.MarkFlagRequired("metrics")
	rootCmd.AddCommand(validateCmd)
}

type validateOutput struct {
	Result     validation.Result     `json:"result"`
	Correction validation.Correction `json:"correction"`
	Metrics    *metrics.Metrics      `json:"metrics"`
}

// snapshot is a metrics export as written by the reporting system.
type snapshot struct {
	Kind   entity.Kind    `json:"kind"`
	ID     string         `json:"id"`
	Month  int            `json:"month"`
	Year   int            `json:"year"`
	Fields map[string]any `json:"fields"`
}

// fileProvider serves a single snapshot as the official source.
type fileProvider struct {
	path string
	snap snapshot
}

func (p *fileProvider) Endpoint(metrics.Request) string { return "file://" + p.path }

func (p *fileProvider) Fetch(_ context.Context, req metrics.Request) (*metrics.Record, error) {
	if req.Kind != p.snap.Kind || req.ID != p.snap.ID {
		return nil, nil
	}
	return &metrics.Record{Kind: p.snap.Kind, ID: p.snap.ID, Fields: p.snap.Fields}, nil
}

func (p *fileProvider) Goals(context.Context, metrics.Request) (*metrics.Record, error) {
	return nil, nil
}

func loadSnapshot(path string) (*fileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open metrics")
	}
	defer f.Close()

	var snap snapshot
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, eris.Wrapf(err, "decode metrics %s", path)
	}
	if snap.Kind == "" {
		snap.Kind = entity.KindAdvisor
	}
	return &fileProvider{path: path, snap: snap}, nil
}

func validateAnswer(ctx context.Context, text string) (*validateOutput, error) {
	p, err := loadSnapshot(validateOpts.metricsFile)
	if err != nil {
		return nil, err
	}
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now
	period := entity.Period{Month: p.snap.Month, Year: p.snap.Year}
	m, err := metrics.NewGateway(p, now).Fetch(ctx, metrics.Request{Kind: p.snap.Kind, ID: p.snap.ID, Period: period})
	if err != nil && !errors.Is(err, metrics.ErrIncompleteMetrics) {
		return nil, err
	}

	query := validateOpts.query
	if query == "" {
		query = text
	}
	res, verr := validation.NewValidator(settings.Static(s), now).Validate(ctx, validation.Input{
		Query:       query,
		Text:        text,
		Ref:         entity.Reference{Kind: p.snap.Kind, ID: p.snap.ID, Period: period},
		Metrics:     m,
		Constrained: validateOpts.constrained,
		UserID:      "guardctl",
	})

	mode := validation.EnforcementMode(validateOpts.mode)
	return &validateOutput{
		Result:     res,
		Correction: validation.NewCorrector(s.Normalize()).Correct(res.Answer, res, mode),
		Metrics:    m,
	}, verr
}

// loadSettings falls back to defaults when the configured file is absent and
// no --settings was given.
func loadSettings(ctx context.Context) (settings.Settings, error) {
	path := validateOpts.settings
	explicit := path != ""
	if !explicit && cfg != nil {
		path = cfg.Settings.Path
	}
	if path == "" {
		return settings.Defaults(), nil
	}
	if _, err := os.Stat(path); !explicit && errors.Is(err, fs.ErrNotExist) {
		return settings.Defaults(), nil
	}
	return settingsfile.New(path).Load(ctx)
}
