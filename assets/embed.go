package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/png"
)

// SampleBarcodeCode is the EAN-13 value encoded in SampleBarcodePNG.
const SampleBarcodeCode = "3017620422003"

// SampleBarcodePNG contains the raw PNG bytes of a clean EAN-13 barcode
// used by the selftest command and decoder tests.
//
//go:embed sample_ean13.png
var SampleBarcodePNG []byte

// SampleBarcodeImage decodes the embedded PNG into an image.Image.
func SampleBarcodeImage() (image.Image, error) {
	if len(SampleBarcodePNG) == 0 {
		return nil, fmt.Errorf("embedded sample_ean13.png is empty")
	}
	img, err := png.Decode(bytes.NewReader(SampleBarcodePNG))
	if err != nil {
		return nil, err
	}
	return img, nil
}
