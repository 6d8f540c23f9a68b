package cli

import (
	"fmt"
	"io"

	units "github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sensreader/config"
	"go.viam.com/sensreader/export"
	"go.viam.com/sensreader/logging"
	"go.viam.com/sensreader/pointcloud"
	"go.viam.com/sensreader/rimage/transform"
	"go.viam.com/sensreader/sens"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(generalFlagDebug) {
		return logging.NewDebugLogger("sensreader")
	}
	return logging.NewLogger("sensreader")
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() != n {
		return errors.Errorf("%s expects %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}

// InfoAction prints a container's header as a table.
func InfoAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	sd, err := sens.ReadSensorDataFromFile(c.Args().First(), newLogger(c))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", infoTable(sd))
	return nil
}

func infoTable(sd *sens.SensorData) string {
	var lost int
	var colorBytes, depthBytes int
	for _, f := range sd.Frames {
		if f.CameraToWorld.IsDegeneratePose() {
			lost++
		}
		colorBytes += len(f.ColorData)
		depthBytes += len(f.DepthData)
	}
	depth := transform.NewPinholeCameraIntrinsicsFromMatrix(sd.IntrinsicDepth, int(sd.DepthWidth), int(sd.DepthHeight))
	hfov, vfov := depth.FieldOfView()

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"sensor", fmt.Sprintf("%q", sd.SensorName)},
		{"version", sens.Version},
		{"frames", sd.NumFrames()},
		{"lost poses", lost},
		{"color", fmt.Sprintf("%dx%d %s, %s", sd.ColorWidth, sd.ColorHeight, sd.ColorCompression,
			units.HumanSize(float64(colorBytes)))},
		{"depth", fmt.Sprintf("%dx%d %s, %s", sd.DepthWidth, sd.DepthHeight, sd.DepthCompression,
			units.HumanSize(float64(depthBytes)))},
		{"depth shift", sd.DepthShift},
		{"depth focal", fmt.Sprintf("fx:%.2f fy:%.2f", depth.Fx, depth.Fy)},
		{"depth center", fmt.Sprintf("ppx:%.2f ppy:%.2f", depth.Ppx, depth.Ppy)},
		{"depth fov", fmt.Sprintf("%.1f° x %.1f°", hfov, vfov)},
		{"depth intrinsics", intrinsicsStatus(depth)},
	})
	if n := sd.NumFrames(); n > 0 {
		t.AppendRow(table.Row{"timestamps", fmt.Sprintf("%d .. %d", sd.Frames[0].TimestampColor, sd.Frames[n-1].TimestampColor)})
		t.AppendRow(table.Row{"frame 0 depth", firstFrameDepth(sd)})
	}
	return t.Render()
}

func intrinsicsStatus(params *transform.PinholeCameraIntrinsics) string {
	if err := params.CheckValid(); err != nil {
		return err.Error()
	}
	return "ok"
}

func firstFrameDepth(sd *sens.SensorData) string {
	dm, err := sd.DepthMap(0)
	if err != nil {
		return err.Error()
	}
	s, err := dm.Stats()
	if err != nil {
		return err.Error()
	}
	shift := float64(sd.DepthShift)
	return fmt.Sprintf("%d valid, mean %.3fm, median %.3fm, sd %.3fm",
		s.Valid, s.Mean/shift, s.Median/shift, s.StdDev/shift)
}

// CloudAction prints the size, bounds and centroid of a point cloud file.
func CloudAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	pc, err := pointcloud.NewFromFile(c.Args().First())
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", cloudTable(pc))
	return nil
}

func cloudTable(pc pointcloud.PointCloud) string {
	meta := pc.MetaData()
	center := pointcloud.Centroid(pc)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"points", pc.Size()},
		{"colored", meta.HasColor},
	})
	if pc.Size() > 0 {
		t.AppendRows([]table.Row{
			{"centroid", fmt.Sprintf("%.4f %.4f %.4f", center.X, center.Y, center.Z)},
			{"x", fmt.Sprintf("%.4f .. %.4f", meta.MinX, meta.MaxX)},
			{"y", fmt.Sprintf("%.4f .. %.4f", meta.MinY, meta.MaxY)},
			{"z", fmt.Sprintf("%.4f .. %.4f", meta.MinZ, meta.MaxZ)},
		})
	}
	return t.Render()
}

// exportConfig merges the optional config file with the flags that were set explicitly.
func exportConfig(c *cli.Context) (*config.Export, error) {
	conf := &config.Export{}
	if fn := c.String(generalFlagConfig); fn != "" {
		var err error
		if conf, err = config.Read(fn); err != nil {
			return nil, err
		}
	}
	if c.Args().Len() > 0 {
		conf.Input = c.Args().Get(0)
	}
	if c.Args().Len() > 1 {
		conf.OutputDir = c.Args().Get(1)
	}
	if conf.Input == "" || conf.OutputDir == "" {
		return nil, errors.Errorf("export needs an input file and an output dir: %s", c.Command.ArgsUsage)
	}

	for flag, dst := range map[string]*bool{
		exportFlagDepth:       &conf.Depth,
		exportFlagColor:       &conf.Color,
		exportFlagPoses:       &conf.Poses,
		exportFlagIntrinsics:  &conf.Intrinsics,
		exportFlagPointClouds: &conf.PointClouds,
		exportFlagPreview:     &conf.DepthPreview,
		exportFlagNormalize:   &conf.Normalize,
	} {
		if c.IsSet(flag) {
			*dst = c.Bool(flag)
		}
	}
	if c.IsSet(exportFlagHalf) || conf.HalfPrecision == nil {
		half := c.Bool(exportFlagHalf)
		conf.HalfPrecision = &half
	}
	if c.IsSet(exportFlagFrameSkip) || conf.FrameSkip == 0 {
		conf.FrameSkip = c.Int(exportFlagFrameSkip)
	}
	if c.IsSet(exportFlagSize) {
		conf.ImageSize = c.String(exportFlagSize)
	}
	if c.IsSet(exportFlagDepthExt) || conf.DepthExt == "" {
		conf.DepthExt = c.String(exportFlagDepthExt)
	}
	if c.IsSet(exportFlagColorExt) || conf.ColorExt == "" {
		conf.ColorExt = c.String(exportFlagColorExt)
	}
	if c.IsSet(exportFlagFormat) || conf.Format == "" {
		conf.Format = c.String(exportFlagFormat)
	}
	if c.IsSet(exportFlagWorkers) {
		conf.Workers = c.Int(exportFlagWorkers)
	}

	if err := conf.Validate("export"); err != nil {
		return nil, err
	}
	if !conf.Kinds().Any() {
		return nil, errors.New("nothing to export; pass at least one of --depth --color --poses --intrinsics --pointclouds --preview")
	}
	return conf, nil
}

// ExportAction writes the selected artifacts of a container to an output directory.
// The positional arguments may be omitted when the config file names them.
func ExportAction(c *cli.Context) error {
	if c.Args().Len() > 2 {
		return errors.Errorf("export expects at most 2 arguments: %s", c.Command.ArgsUsage)
	}
	conf, err := exportConfig(c)
	if err != nil {
		return err
	}
	opts, err := conf.Options()
	if err != nil {
		return err
	}

	logger := newLogger(c)
	sd, err := sens.ReadSensorDataFromFile(conf.Input, logger)
	if err != nil {
		return err
	}
	e, err := export.NewExporter(sd, opts, logger.Sublogger("export"))
	if err != nil {
		return err
	}
	results, err := e.Run(c.Context, conf.OutputDir, conf.Kinds())
	for _, res := range results {
		printf(c.App.Writer, "%s: %d written, %d failed", res.Kind, len(res.Written()), len(res.Failed()))
	}
	return err
}

// SynthAction writes a synthetic container.
func SynthAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	colorCodec, err := sens.ParseColorCodec(c.String(synthFlagColorCodec))
	if err != nil {
		return err
	}
	depthCodec, err := sens.ParseDepthCodec(c.String(synthFlagDepthCodec))
	if err != nil {
		return err
	}
	sd, err := sens.NewSyntheticSensorData(sens.SyntheticConfig{
		Width:      c.Int(synthFlagWidth),
		Height:     c.Int(synthFlagHeight),
		NumFrames:  c.Int(synthFlagFrames),
		Color:      colorCodec,
		Depth:      depthCodec,
		DepthShift: float32(c.Float64(synthFlagDepthShift)),
	})
	if err != nil {
		return err
	}
	fn := c.Args().First()
	if err := sens.WriteSensorDataToFile(fn, sd); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %d frames to %s", sd.NumFrames(), fn)
	return nil
}
