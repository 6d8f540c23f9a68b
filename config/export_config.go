// Package config defines the on-disk description of an export job.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensreader/export"
	"go.viam.com/sensreader/pointcloud"
	"go.viam.com/sensreader/rimage"
)

// Export describes which artifacts to produce from a container and how.
type Export struct {
	Input     string `json:"input"`
	OutputDir string `json:"output_dir"`

	FrameSkip     int    `json:"frame_skip"`
	ImageSize     string `json:"image_size"`
	DepthExt      string `json:"depth_ext"`
	ColorExt      string `json:"color_ext"`
	Format        string `json:"format"`
	Normalize     bool   `json:"normalize"`
	HalfPrecision *bool  `json:"half_precision"`
	Workers       int    `json:"workers"`

	Depth        bool `json:"export_depth_images"`
	Color        bool `json:"export_color_images"`
	Poses        bool `json:"export_poses"`
	Intrinsics   bool `json:"export_intrinsics"`
	PointClouds  bool `json:"export_point_clouds"`
	DepthPreview bool `json:"export_depth_preview"`
}

// Validate ensures all parts of the config are valid.
func (conf *Export) Validate(path string) error {
	if conf.FrameSkip < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("frame_skip must not be negative, got %d", conf.FrameSkip))
	}
	if conf.Workers < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("workers must not be negative, got %d", conf.Workers))
	}
	if _, _, err := ParseImageSize(conf.ImageSize); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := pointcloud.ParseFormat(conf.Format); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := rimage.ParseImageExt(conf.DepthExt, "", rimage.DepthExtensions); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "depth_ext"))
	}
	if _, err := rimage.ParseImageExt(conf.ColorExt, "", rimage.ImageExtensions); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "color_ext"))
	}
	if conf.Kinds().Any() && conf.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	return nil
}

// Half reports whether point clouds are stored at half precision, which is the default.
func (conf *Export) Half() bool {
	return conf.HalfPrecision == nil || *conf.HalfPrecision
}

// Kinds returns the selected export kinds.
func (conf *Export) Kinds() export.Kinds {
	return export.Kinds{
		Depth:        conf.Depth,
		Color:        conf.Color,
		Poses:        conf.Poses,
		Intrinsics:   conf.Intrinsics,
		PointClouds:  conf.PointClouds,
		DepthPreview: conf.DepthPreview,
	}
}

// Options converts the config into exporter options. The config must be valid.
func (conf *Export) Options() (export.Options, error) {
	w, h, err := ParseImageSize(conf.ImageSize)
	if err != nil {
		return export.Options{}, err
	}
	format, err := pointcloud.ParseFormat(conf.Format)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		FrameSkip:     conf.FrameSkip,
		Width:         w,
		Height:        h,
		DepthExt:      conf.DepthExt,
		ColorExt:      conf.ColorExt,
		Format:        format,
		Normalize:     conf.Normalize,
		HalfPrecision: conf.Half(),
		Workers:       conf.Workers,
	}, nil
}

// ParseImageSize parses "WIDTHxHEIGHT". The empty string means no resizing and returns 0, 0.
func ParseImageSize(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("image size %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "image size %q has invalid width", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "image size %q has invalid height", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("image size %q must be positive", s)
	}
	return w, h, nil
}

// FormatImageSize is the inverse of ParseImageSize.
func FormatImageSize(w, h int) string {
	if w == 0 && h == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// FromMap decodes attributes into an Export. Values may be given as strings, so
// "frame_skip": "10" is accepted. Unknown keys are an error.
func FromMap(attrs map[string]interface{}) (*Export, error) {
	var conf Export
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode export config")
	}
	if len(md.Unused) > 0 {
		return nil, errors.Errorf("unknown export config fields %v", md.Unused)
	}
	return &conf, nil
}

// FromReader reads a JSON export config from r and validates it. originalPath is used in
// validation messages.
func FromReader(originalPath string, r io.Reader) (*Export, error) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attrs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode export config from json")
	}
	conf, err := FromMap(attrs)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(originalPath); err != nil {
		return nil, err
	}
	return conf, nil
}

// Read reads and validates the export config at path.
func Read(path string) (*Export, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return FromReader(path, f)
}
