package pointcloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// Format names an on-disk point cloud encoding.
type Format string

const (
	// FormatPLY is binary little endian PLY with x y z (float), red green blue (uchar), alpha (float).
	FormatPLY Format = "ply"
	// FormatTXT is one whitespace separated "x y z r g b a" row per point, colors in [0, 1].
	FormatTXT Format = "txt"
	// FormatNPY is a numpy N×7 array of the same columns as FormatTXT.
	FormatNPY Format = "npy"
	// FormatPCD is ascii PCD with x y z rgb fields.
	FormatPCD Format = "pcd"
	// FormatPCDBinary is FormatPCD with binary data. Files keep the ".pcd" extension.
	FormatPCDBinary Format = "pcd-binary"
	// FormatLAS is LAS point format 2 (with RGB).
	FormatLAS Format = "las"
)

// Formats lists every supported Format.
var Formats = []Format{FormatPLY, FormatTXT, FormatNPY, FormatPCD, FormatPCDBinary, FormatLAS}

// ParseFormat validates a format name. The empty string selects FormatPLY.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatPLY, nil
	}
	f := Format(strings.ToLower(strings.TrimPrefix(name, ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Errorf("unknown point cloud format %q", name)
}

// Ext is the file extension, with leading dot, used for the format.
func (f Format) Ext() string {
	if f == FormatPCDBinary {
		return ".pcd"
	}
	return "." + string(f)
}

// WriteOptions tune the writers.
type WriteOptions struct {
	// HalfPrecision stores positions and normalized colors as float16 values before they
	// are serialized.
	HalfPrecision bool
}

// WriteToFile writes the cloud to fn in the given format.
func WriteToFile(cloud PointCloud, fn string, format Format, opts WriteOptions) (err error) {
	if format == FormatLAS {
		if opts.HalfPrecision {
			cloud = Quantize(cloud)
		}
		return WriteToLASFile(cloud, fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	defer func() {
		err = multierr.Combine(err, w.Flush())
	}()

	switch format {
	case FormatPLY:
		return WriteToPLY(cloud, w, opts)
	case FormatTXT:
		return WriteToTXT(cloud, w, opts)
	case FormatNPY:
		return WriteToNPY(cloud, w, opts)
	case FormatPCD, FormatPCDBinary:
		if opts.HalfPrecision {
			cloud = Quantize(cloud)
		}
		pcdType := PCDAscii
		if format == FormatPCDBinary {
			pcdType = PCDBinary
		}
		return ToPCD(cloud, w, pcdType)
	default:
		return errors.Errorf("do not know how to write point cloud format %q", format)
	}
}

// rows returns the seven column representation (x y z r g b a) of every point.
func rows(cloud PointCloud, opts WriteOptions) [][7]float64 {
	if opts.HalfPrecision {
		cloud = Quantize(cloud)
	}
	out := make([][7]float64, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		c := NormalizedColor(d)
		if opts.HalfPrecision {
			c = QuantizedColor(d)
		}
		out = append(out, [7]float64{p.X, p.Y, p.Z, c[0], c[1], c[2], c[3]})
		return true
	})
	return out
}

// NewFromFile reads a ".pcd" or ".las" point cloud file.
func NewFromFile(fn string) (PointCloud, error) {
	switch ext := strings.ToLower(filepath.Ext(fn)); ext {
	case ".las":
		return NewFromLASFile(fn)
	case ".pcd":
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		return ReadPCD(f)
	default:
		return nil, errors.Errorf("do not know how to read point cloud file %q", fn)
	}
}

// WriteToPLY writes a binary little endian PLY vertex list. Color channels are
// int(255*c) of the normalized color; with half precision both c and the product
// are rounded to half precision before truncation.
func WriteToPLY(cloud PointCloud, out io.Writer, opts WriteOptions) error {
	points := rows(cloud, opts)
	if _, err := fmt.Fprintf(out, "ply\n"+
		"format binary_little_endian 1.0\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n"+
		"property uchar red\n"+
		"property uchar green\n"+
		"property uchar blue\n"+
		"property float alpha\n"+
		"end_header\n", len(points)); err != nil {
		return err
	}

	const vertexSize = 3*4 + 3 + 4
	buf := make([]byte, vertexSize)
	for _, p := range points {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p[0])))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p[1])))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p[2])))
		buf[12] = plyChannel(p[3], opts.HalfPrecision)
		buf[13] = plyChannel(p[4], opts.HalfPrecision)
		buf[14] = plyChannel(p[5], opts.HalfPrecision)
		binary.LittleEndian.PutUint32(buf[15:], math.Float32bits(float32(p[6])))
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func plyChannel(c float64, half bool) uint8 {
	v := 255 * c
	if half {
		v = ToHalfPrecision(v)
	}
	return uint8(v)
}

// WriteToTXT writes one "%f" formatted row per point.
func WriteToTXT(cloud PointCloud, out io.Writer, opts WriteOptions) error {
	for _, p := range rows(cloud, opts) {
		if _, err := fmt.Fprintf(out, "%f %f %f %f %f %f %f\n",
			p[0], p[1], p[2], p[3], p[4], p[5], p[6]); err != nil {
			return err
		}
	}
	return nil
}

// npyMagic starts every .npy file, followed by format version 1.0.
const npyMagic = "\x93NUMPY\x01\x00"

// WriteToNPY writes an N×7 numpy array, "<f2" with half precision and "<f4" otherwise.
func WriteToNPY(cloud PointCloud, out io.Writer, opts WriteOptions) error {
	points := rows(cloud, opts)
	descr := "<f4"
	if opts.HalfPrecision {
		descr = "<f2"
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, 7), }", descr, len(points))
	// magic + version + u16 header length + header, padded with spaces and a trailing
	// newline to a multiple of 64 bytes.
	total := len(npyMagic) + 2 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	var prefix bytes.Buffer
	prefix.WriteString(npyMagic)
	//nolint:errcheck
	binary.Write(&prefix, binary.LittleEndian, uint16(len(header)))
	prefix.WriteString(header)
	if _, err := out.Write(prefix.Bytes()); err != nil {
		return err
	}

	for _, p := range points {
		var row []byte
		for _, v := range p {
			if opts.HalfPrecision {
				row = binary.LittleEndian.AppendUint16(row, float16.Fromfloat32(float32(v)).Bits())
			} else {
				row = binary.LittleEndian.AppendUint32(row, math.Float32bits(float32(v)))
			}
		}
		if _, err := out.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteToLASFile writes the point cloud out to a LAS file.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	meta := cloud.MetaData()

	pointFormatID := 0
	if meta.HasColor {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: byte(pointFormatID),
	}); err != nil {
		return
	}

	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		var lp lidario.LasPointer
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		lp = pr0

		if meta.HasColor {
			var red, green, blue int
			if d != nil && d.HasColor() {
				r, g, b := d.RGB255()
				red, green, blue = int(r), int(g), int(b)
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(red * 256),
					Green: uint16(green * 256),
					Blue:  uint16(blue * 256),
				},
			}
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		err = lastErr
		return
	}

	// nolint:nakedret
	return
}

// NewFromLASFile reads a LAS file back into an ordered point cloud.
func NewFromLASFile(fn string) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	pc := NewWithPrealloc(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		var dd Data = NewBasicData()
		if lf.Header.PointFormatID == 2 && p.RgbData() != nil {
			r := uint8(p.RgbData().Red / 256)
			g := uint8(p.RgbData().Green / 256)
			b := uint8(p.RgbData().Blue / 256)
			dd = NewColoredData(color.NRGBA{r, g, b, 255})
		}
		if err := pc.Set(r3.Vector{X: data.X, Y: data.Y, Z: data.Z}, dd); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

func _colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 0
	}

	r, g, b := pt.RGB255()
	x := 0

	x |= (int(r) << 16)
	x |= (int(g) << 8)
	x |= (int(b) << 0)
	return x
}

func _pcdIntToColor(c int) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

// ToPCD writes the cloud as PCD v0.7 with x y z rgb fields.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z rgb\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F I\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		1,
		cloud.Size())
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}
	if err != nil {
		return err
	}

	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		c := _colorToPCDInt(d)
		switch outputType {
		case PCDBinary:
			buf := make([]byte, 16)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			binary.LittleEndian.PutUint32(buf[12:], uint32(c))
			_, err = out.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, c)
		}
		return err == nil
	})
	return err
}

// ReadPCD reads a PCD file with x y z rgb fields written by ToPCD.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	var points int
	dataType := ""
	for dataType == "" {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "error reading pcd header")
		}
		line, _, _ = strings.Cut(line, "#")
		field, value, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch field {
		case "FIELDS":
			if value != "x y z rgb" {
				return nil, errors.Errorf("unsupported pcd fields %s", value)
			}
		case "POINTS":
			if points, err = strconv.Atoi(value); err != nil {
				return nil, errors.Wrapf(err, "invalid POINTS field %s", value)
			}
		case "DATA":
			dataType = value
		}
	}

	pc := NewWithPrealloc(points)
	for i := 0; i < points; i++ {
		var x, y, z float64
		var c int
		switch dataType {
		case "ascii":
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, err
			}
			tokens := strings.Fields(line)
			if len(tokens) != 4 {
				return nil, errors.Errorf("unexpected number of fields in point %d", i)
			}
			vals := make([]float64, 3)
			for j := range vals {
				if vals[j], err = strconv.ParseFloat(tokens[j], 64); err != nil {
					return nil, errors.Wrapf(err, "invalid point %d", i)
				}
			}
			x, y, z = vals[0], vals[1], vals[2]
			if c, err = strconv.Atoi(tokens[3]); err != nil {
				return nil, errors.Wrapf(err, "invalid point %d color", i)
			}
		case "binary":
			buf := make([]byte, 16)
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, err
			}
			x = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
			y = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
			z = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])))
			c = int(binary.LittleEndian.Uint32(buf[12:]))
		default:
			return nil, errors.Errorf("unsupported pcd data type %q", dataType)
		}
		if err := pc.Set(NewVector(x, y, z), NewColoredData(_pcdIntToColor(c))); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
