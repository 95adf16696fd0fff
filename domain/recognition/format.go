package recognition

import (
	"fmt"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Format enumerates the symbologies a capability can be configured to accept.
type Format int

const (
	FormatUnknown Format = iota
	FormatEAN13
	FormatEAN8
	FormatUPCA
	FormatUPCE
	FormatCode128
	FormatCode39
	FormatITF
	FormatQRCode
)

type formatEntry struct {
	format    Format
	name      string
	zxing     gozxing.BarcodeFormat
	newReader func() gozxing.Reader
}

// formatTable is ordered the way readers are tried: linear retail codes
// first, QR last but one, ITF last.
var formatTable = []formatEntry{
	{FormatEAN13, "EAN_13", gozxing.BarcodeFormat_EAN_13, func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{FormatEAN8, "EAN_8", gozxing.BarcodeFormat_EAN_8, func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{FormatUPCA, "UPC_A", gozxing.BarcodeFormat_UPC_A, func() gozxing.Reader { return oned.NewUPCAReader() }},
	{FormatUPCE, "UPC_E", gozxing.BarcodeFormat_UPC_E, func() gozxing.Reader { return oned.NewUPCEReader() }},
	{FormatCode128, "CODE_128", gozxing.BarcodeFormat_CODE_128, func() gozxing.Reader { return oned.NewCode128Reader() }},
	{FormatCode39, "CODE_39", gozxing.BarcodeFormat_CODE_39, func() gozxing.Reader { return oned.NewCode39Reader() }},
	{FormatQRCode, "QR_CODE", gozxing.BarcodeFormat_QR_CODE, func() gozxing.Reader { return qrcode.NewQRCodeReader() }},
	{FormatITF, "ITF", gozxing.BarcodeFormat_ITF, func() gozxing.Reader { return oned.NewITFReader() }},
}

func lookup(f Format) (formatEntry, bool) {
	for _, e := range formatTable {
		if e.format == f {
			return e, true
		}
	}
	return formatEntry{}, false
}

func (f Format) String() string {
	if e, ok := lookup(f); ok {
		return e.name
	}
	return "UNKNOWN"
}

// MarshalText encodes the format by name so results serialize as "EAN_13".
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText accepts any spelling ParseFormat accepts.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat resolves a format name. Matching ignores case and treats '-'
// and '_' alike, so "ean-13", "ean_13" and "EAN13" all resolve; "qr" is
// accepted for QR_CODE.
func ParseFormat(s string) (Format, error) {
	key := normalizeName(s)
	if key == "QR" {
		return FormatQRCode, nil
	}
	for _, e := range formatTable {
		if normalizeName(e.name) == key {
			return e.format, nil
		}
	}
	return FormatUnknown, fmt.Errorf("recognition: unknown format %q", s)
}

// ParseFormats resolves a list of names, preserving order and dropping
// duplicates.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// DefaultFormats returns every supported format in reader order.
func DefaultFormats() []Format {
	out := make([]Format, len(formatTable))
	for i, e := range formatTable {
		out[i] = e.format
	}
	return out
}

func fromZXing(bf gozxing.BarcodeFormat) Format {
	for _, e := range formatTable {
		if e.zxing == bf {
			return e.format
		}
	}
	return FormatUnknown
}

func normalizeName(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return r.Replace(strings.ToUpper(strings.TrimSpace(s)))
}
