package recognition

import (
	"encoding/json"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat_Spellings(t *testing.T) {
	cases := map[string]Format{
		"EAN_13":   FormatEAN13,
		"ean-13":   FormatEAN13,
		"ean13":    FormatEAN13,
		" upc_e ":  FormatUPCE,
		"code_128": FormatCode128,
		"Code-39":  FormatCode39,
		"itf":      FormatITF,
		"qr_code":  FormatQRCode,
		"qr":       FormatQRCode,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf417")
	assert.Error(t, err)
}

func TestParseFormats_DedupesAndKeepsOrder(t *testing.T) {
	got, err := ParseFormats([]string{"qr_code", "ean_13", "QR", "ean-13"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatQRCode, FormatEAN13}, got)

	_, err = ParseFormats([]string{"ean_13", "aztec"})
	assert.Error(t, err)
}

func TestFormat_TextEncoding(t *testing.T) {
	b, err := json.Marshal(Candidate{Code: "123", Format: FormatUPCA})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"123","format":"UPC_A"}`, string(b))

	var c Candidate
	require.NoError(t, json.Unmarshal([]byte(`{"code":"x","format":"code-128"}`), &c))
	assert.Equal(t, FormatCode128, c.Format)
	assert.Equal(t, "UNKNOWN", FormatUnknown.String())
}

func TestDefaultFormats_MatchTable(t *testing.T) {
	formats := DefaultFormats()
	require.Len(t, formats, 8)
	assert.Equal(t, FormatEAN13, formats[0])
	for _, f := range formats {
		e, ok := lookup(f)
		require.True(t, ok)
		assert.Equal(t, f, fromZXing(e.zxing))
	}
	assert.Equal(t, FormatUnknown, fromZXing(gozxing.BarcodeFormat_AZTEC))
}
