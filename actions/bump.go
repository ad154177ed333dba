package actions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kbukum/assetflow/dag"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/storage/local"
)

// Bump types.
const (
	BumpMajor = "major"
	BumpMinor = "minor"
	BumpPatch = "patch"
)

// BumpOptions bumps a semver field in JSON manifests such as package.json.
type BumpOptions struct {
	Files []string `mapstructure:"files"`
	// Field is a gjson path. Defaults to "version".
	Field string `mapstructure:"field"`
	// Type overrides Env.BumpType.
	Type string `mapstructure:"type"`
}

// NewBump builds the bump action.
func NewBump(opts Options, env Env) (dag.Work, error) {
	var o BumpOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if len(o.Files) == 0 {
		return nil, fmt.Errorf("files is required")
	}
	if o.Field == "" {
		o.Field = "version"
	}
	if o.Type == "" {
		o.Type = env.BumpType
	}
	if o.Type == "" {
		o.Type = BumpPatch
	}
	if err := ValidateBumpType(o.Type); err != nil {
		return nil, err
	}

	log := env.logger().WithComponent("bump")
	return dag.ActionFunc(func(ctx context.Context) error {
		// Every manifest is read and bumped in memory first so a bad file
		// leaves all of them untouched.
		edits := make([]bumpEdit, 0, len(o.Files))
		for _, f := range o.Files {
			p := f
			if !filepath.IsAbs(p) && env.Root != "" {
				p = filepath.Join(env.Root, p)
			}
			e, err := planBump(p, o.Field, o.Type)
			if err != nil {
				return err
			}
			edits = append(edits, e)
		}

		for i, e := range edits {
			if err := e.write(ctx, e.next); err != nil {
				for _, done := range edits[:i] {
					if rerr := done.write(context.WithoutCancel(ctx), done.orig); rerr != nil {
						log.Error("Failed to restore manifest", logger.MergeWithError(logger.Fields(logger.FieldPath, done.path), rerr))
					}
				}
				return err
			}
		}
		for i, e := range edits {
			log.Info("Bumped version", logger.Fields(logger.FieldPath, o.Files[i], "from", e.from, "to", e.to))
		}
		return nil
	}), nil
}

// ValidateBumpType rejects anything but major, minor or patch.
func ValidateBumpType(t string) error {
	switch t {
	case BumpMajor, BumpMinor, BumpPatch:
		return nil
	}
	return apperrors.InvalidInput("bump-type", fmt.Sprintf("%q is not one of major, minor, patch", t))
}

// BumpVersion returns v incremented by bumpType.
func BumpVersion(v, bumpType string) (string, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", v, err)
	}
	var next semver.Version
	switch bumpType {
	case BumpMajor:
		next = sv.IncMajor()
	case BumpMinor:
		next = sv.IncMinor()
	case BumpPatch:
		next = sv.IncPatch()
	default:
		return "", ValidateBumpType(bumpType)
	}
	return next.String(), nil
}

// BumpFile rewrites field in the JSON file at p and returns the old and new
// versions. The rest of the document is kept byte for byte and the file is
// replaced atomically.
func BumpFile(ctx context.Context, p, field, bumpType string) (from, to string, err error) {
	e, err := planBump(p, field, bumpType)
	if err != nil {
		return "", "", err
	}
	if err := e.write(ctx, e.next); err != nil {
		return "", "", err
	}
	return e.from, e.to, nil
}

// bumpEdit is a manifest rewrite computed but not yet written.
type bumpEdit struct {
	path       string
	from, to   string
	orig, next []byte
}

func planBump(p, field, bumpType string) (bumpEdit, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return bumpEdit{}, err
	}
	cur := gjson.GetBytes(data, field)
	if !cur.Exists() || cur.Type != gjson.String {
		return bumpEdit{}, fmt.Errorf("%s: no string field %q", p, field)
	}
	to, err := BumpVersion(cur.String(), bumpType)
	if err != nil {
		return bumpEdit{}, fmt.Errorf("%s: %w", p, err)
	}
	out, err := sjson.SetBytes(data, field, to)
	if err != nil {
		return bumpEdit{}, fmt.Errorf("%s: %w", p, err)
	}
	return bumpEdit{path: p, from: cur.String(), to: to, orig: data, next: out}, nil
}

func (e bumpEdit) write(ctx context.Context, data []byte) error {
	st, err := local.NewStorage(filepath.Dir(e.path))
	if err != nil {
		return err
	}
	return st.Upload(ctx, filepath.Base(e.path), bytes.NewReader(data))
}
