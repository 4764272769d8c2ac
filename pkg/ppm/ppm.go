// Package ppm reads and writes binary PPM (P6) images with a maximum
// channel value of 255.
package ppm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"go-edge/pkg/common"
)

// maxPixels bounds the allocation a header can request.
const maxPixels = 1 << 28

var (
	ErrFormat    = errors.New("ppm: invalid format")
	ErrTruncated = errors.New("ppm: truncated pixel data")
	ErrTooLarge  = errors.New("ppm: image too large")
)

type header struct {
	width  int
	height int
	maxval int
}

// DecodeConfig reads only the header and returns the image dimensions.
func DecodeConfig(r io.Reader) (width, height int, err error) {
	h, err := readHeader(bufio.NewReader(r))
	if err != nil {
		return 0, 0, err
	}
	return h.width, h.height, nil
}

// Decode reads a P6 image. Comment lines are accepted between the magic
// number and the dimensions. Bytes after the pixel data are ignored.
func Decode(r io.Reader) (*common.Buffer, error) {
	br := bufio.NewReader(r)

	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	// exactly one whitespace byte separates header and raster
	c, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing raster", ErrTruncated)
	}
	if !isSpace(c) {
		return nil, fmt.Errorf("%w: expected whitespace after maxval, got %q", ErrFormat, c)
	}

	img, err := common.NewBuffer(h.width, h.height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	raw := make([]byte, img.Len()*3)
	if n, err := io.ReadFull(br, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, n, len(raw))
		}
		return nil, err
	}

	for i := range img.Pix {
		img.Pix[i] = common.Pixel{R: raw[3*i], G: raw[3*i+1], B: raw[3*i+2]}
	}
	return img, nil
}

// Encode writes img as "P6\n<w> <h>\n255\n" followed by the raw RGB bytes.
func Encode(w io.Writer, img *common.Buffer) error {
	if img == nil || img.Width < 1 || img.Height < 1 || img.Len() != img.Width*img.Height {
		return common.ErrEmptyImage
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\n%d %d\n%d\n", common.Magic, img.Width, img.Height, common.MaxColor); err != nil {
		return err
	}

	row := make([]byte, img.Width*3)
	for y := 0; y < img.Height; y++ {
		line := img.Pix[y*img.Width : (y+1)*img.Width]
		for x, p := range line {
			row[3*x] = p.R
			row[3*x+1] = p.G
			row[3*x+2] = p.B
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadFile(path string) (*common.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// WriteFile creates or truncates path and encodes img into it. On failure
// the partially written file is removed.
func WriteFile(path string, img *common.Buffer) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func readHeader(br *bufio.Reader) (header, error) {
	var h header

	magic := make([]byte, 2)
	if _, err := io.ReadFull(br, magic); err != nil {
		return h, fmt.Errorf("%w: missing magic number", ErrFormat)
	}
	if string(magic) != common.Magic {
		return h, fmt.Errorf("%w: magic %q, want %q", ErrFormat, magic, common.Magic)
	}

	if err := skipComments(br); err != nil {
		return h, err
	}

	var err error
	if h.width, err = readUint(br, "width"); err != nil {
		return h, err
	}
	if err := skipSpace(br); err != nil {
		return h, err
	}
	if h.height, err = readUint(br, "height"); err != nil {
		return h, err
	}
	if err := skipSpace(br); err != nil {
		return h, err
	}
	if h.maxval, err = readUint(br, "maxval"); err != nil {
		return h, err
	}

	if h.width < 1 || h.height < 1 {
		return h, fmt.Errorf("%w: dimensions %dx%d", ErrFormat, h.width, h.height)
	}
	if h.width > maxPixels/h.height {
		return h, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, h.width, h.height, maxPixels)
	}
	if h.maxval != common.MaxColor {
		return h, fmt.Errorf("%w: maxval %d, want %d", ErrFormat, h.maxval, common.MaxColor)
	}
	return h, nil
}

// skipComments consumes whitespace and whole '#' lines up to the first
// non-space, non-comment byte.
func skipComments(br *bufio.Reader) error {
	for {
		if err := skipSpace(br); err != nil {
			return err
		}
		c, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: unexpected end of header", ErrFormat)
		}
		if c != '#' {
			return br.UnreadByte()
		}
		if _, err := br.ReadString('\n'); err != nil {
			return fmt.Errorf("%w: unterminated comment", ErrFormat)
		}
	}
}

func skipSpace(br *bufio.Reader) error {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: unexpected end of header", ErrFormat)
		}
		if !isSpace(c) {
			return br.UnreadByte()
		}
	}
}

func readUint(br *bufio.Reader, field string) (int, error) {
	n, digits := 0, 0
	for {
		c, err := br.ReadByte()
		if err != nil {
			break
		}
		if c < '0' || c > '9' {
			br.UnreadByte()
			break
		}
		if n > maxPixels {
			return 0, fmt.Errorf("%w: %s out of range", ErrTooLarge, field)
		}
		n = n*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("%w: missing %s", ErrFormat, field)
	}
	return n, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
