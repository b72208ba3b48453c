package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// V4L2 is a Linux video4linux device (USB webcam, Pi camera with the
// V4L2 driver). Open is implemented per platform.
type V4L2 struct {
	Path   string // e.g. /dev/video0
	Width  int
	Height int
	Format string // "yuyv" or "mjpeg"
}

func (v *V4L2) Name() string { return v.Path }

// decodeFrame turns one raw buffer into an image of w x h.
func decodeFrame(format string, buf []byte, w, h int) (image.Image, error) {
	switch format {
	case "yuyv":
		return yuyvToYCbCr(buf, w, h, yuyvStride(len(buf), w, h))
	case "mjpeg":
		return jpeg.Decode(bytes.NewReader(buf))
	default:
		return nil, fmt.Errorf("unsupported frame format %q", format)
	}
}

// yuyvStride returns the bytes per line of a YUYV frame. Drivers may pad
// each line, so a frame of n bytes holds h lines of n/h bytes.
func yuyvStride(n, w, h int) int {
	if h > 0 && n/h > 2*w {
		return n / h
	}
	return 2 * w
}

// yuyvToYCbCr converts packed YUYV 4:2:2 (Y0 U Y1 V) into a planar
// image.YCbCr without colour conversion. stride is the bytes per line.
func yuyvToYCbCr(buf []byte, w, h, stride int) (*image.YCbCr, error) {
	if w <= 0 || h <= 0 || w%2 != 0 {
		return nil, fmt.Errorf("yuyv: invalid size %dx%d", w, h)
	}
	if stride < 2*w {
		return nil, fmt.Errorf("yuyv: stride %d below %d for width %d", stride, 2*w, w)
	}
	if len(buf) < stride*(h-1)+2*w {
		return nil, fmt.Errorf("yuyv: short frame, %d bytes for %dx%d", len(buf), w, h)
	}
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := buf[y*stride : y*stride+2*w]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for i := 0; i < w/2; i++ {
			p := row[i*4 : i*4+4]
			img.Y[yOff+2*i] = p[0]
			img.Cb[cOff+i] = p[1]
			img.Y[yOff+2*i+1] = p[2]
			img.Cr[cOff+i] = p[3]
		}
	}
	return img, nil
}
