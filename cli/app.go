// Package cli contains the sensreader command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	generalFlagDebug  = "debug"
	generalFlagConfig = "config"

	exportFlagDepth       = "depth"
	exportFlagColor       = "color"
	exportFlagPoses       = "poses"
	exportFlagIntrinsics  = "intrinsics"
	exportFlagPointClouds = "pointclouds"
	exportFlagPreview     = "preview"
	exportFlagFrameSkip   = "frame-skip"
	exportFlagSize        = "size"
	exportFlagDepthExt    = "depth-ext"
	exportFlagColorExt    = "color-ext"
	exportFlagFormat      = "format"
	exportFlagNormalize   = "normalize"
	exportFlagHalf        = "half"
	exportFlagWorkers     = "workers"

	synthFlagWidth      = "width"
	synthFlagHeight     = "height"
	synthFlagFrames     = "frames"
	synthFlagColorCodec = "color-codec"
	synthFlagDepthCodec = "depth-codec"
	synthFlagDepthShift = "depth-shift"
)

var app = &cli.App{
	Name:            "sensreader",
	Usage:           "inspect and export RGB-D sensor stream (.sens) files",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "info",
			Usage:     "print the calibration and frame summary of a container",
			ArgsUsage: "<file.sens>",
			Action:    InfoAction,
		},
		{
			Name:      "cloud",
			Usage:     "summarize an exported point cloud",
			ArgsUsage: "<file.pcd|file.las>",
			Action:    CloudAction,
		},
		{
			Name:      "export",
			Usage:     "export images, poses, calibration and point clouds from a container",
			ArgsUsage: "[file.sens] [output dir]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    generalFlagConfig,
					Aliases: []string{"c"},
					Usage:   "load export settings from JSON `FILE`; flags override it",
				},
				&cli.BoolFlag{Name: exportFlagDepth, Usage: "export 16-bit depth images"},
				&cli.BoolFlag{Name: exportFlagColor, Usage: "export color images"},
				&cli.BoolFlag{Name: exportFlagPoses, Usage: "export camera poses"},
				&cli.BoolFlag{Name: exportFlagIntrinsics, Usage: "export calibration matrices"},
				&cli.BoolFlag{Name: exportFlagPointClouds, Usage: "export point clouds"},
				&cli.BoolFlag{Name: exportFlagPreview, Usage: "export colorized depth previews"},
				&cli.IntFlag{
					Name:  exportFlagFrameSkip,
					Usage: "export every Nth frame",
					Value: 1,
				},
				&cli.StringFlag{
					Name:  exportFlagSize,
					Usage: "resize exported images to `WIDTHxHEIGHT`",
				},
				&cli.StringFlag{
					Name:  exportFlagDepthExt,
					Usage: "depth image format: png, tif or tiff",
					Value: "png",
				},
				&cli.StringFlag{
					Name:  exportFlagColorExt,
					Usage: "color image format: jpg, jpeg, png, tif, tiff, bmp, ppm or qoi",
					Value: "jpg",
				},
				&cli.StringFlag{
					Name:  exportFlagFormat,
					Usage: "point cloud format: ply, txt, npy, pcd, pcd-binary or las",
					Value: "ply",
				},
				&cli.BoolFlag{Name: exportFlagNormalize, Usage: "fit each point cloud into the unit sphere"},
				&cli.BoolFlag{
					Name:  exportFlagHalf,
					Usage: "store point clouds at half precision",
					Value: true,
				},
				&cli.IntFlag{
					Name:  exportFlagWorkers,
					Usage: "frames processed at once, 0 for one per CPU",
				},
			},
			Action: ExportAction,
		},
		{
			Name:      "synth",
			Usage:     "write a small synthetic container",
			ArgsUsage: "<file.sens>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: synthFlagWidth, Value: 64},
				&cli.IntFlag{Name: synthFlagHeight, Value: 48},
				&cli.IntFlag{Name: synthFlagFrames, Value: 10},
				&cli.StringFlag{Name: synthFlagColorCodec, Value: "jpeg", Usage: "raw, png or jpeg"},
				&cli.StringFlag{Name: synthFlagDepthCodec, Value: "zlib_ushort", Usage: "raw_ushort or zlib_ushort"},
				&cli.Float64Flag{Name: synthFlagDepthShift, Value: 1000},
			},
			Action: SynthAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
