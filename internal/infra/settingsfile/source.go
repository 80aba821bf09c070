// Package settingsfile loads prompt and validation settings from a YAML file.
package settingsfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
)

// Source re-reads the file on every Load; settings.CachedStore decides how
// often that happens. Keys absent from the file keep their defaults.
type Source struct {
	Path string
}

func New(path string) *Source {
	return &Source{Path: path}
}

func (s *Source) Load(_ context.Context) (settings.Settings, error) {
	out := settings.Defaults()
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return out, eris.Wrapf(err, "settingsfile: read %s", s.Path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return settings.Defaults(), eris.Wrapf(err, "settingsfile: parse %s", s.Path)
	}
	return out, nil
}
