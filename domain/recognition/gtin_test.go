package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidGTIN(t *testing.T) {
	valid := []string{"3017620422003", "96385074", "036000291452", "00012345600012"}
	for _, c := range valid {
		assert.True(t, ValidGTIN(c), c)
	}
	invalid := []string{"3017620422004", "96385075", "", "7", "30176204220a3"}
	for _, c := range invalid {
		assert.False(t, ValidGTIN(c), c)
	}
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Candidate
		wantErr error
	}{
		{"ean13", " 3017620422003 ", Candidate{Code: "3017620422003", Format: FormatEAN13}, nil},
		{"ean8", "96385074", Candidate{Code: "96385074", Format: FormatEAN8}, nil},
		{"upce", "04252614", Candidate{Code: "04252614", Format: FormatUPCE}, nil},
		{"upce bad check", "04252615", Candidate{}, ErrInvalidChecksum},
		{"ean8 bad check not upce", "96385075", Candidate{}, ErrInvalidChecksum},
		{"upca", "036000291452", Candidate{Code: "036000291452", Format: FormatUPCA}, nil},
		{"gtin14", "00012345600012", Candidate{Code: "00012345600012", Format: FormatITF}, nil},
		{"other digits", "12345", Candidate{Code: "12345", Format: FormatCode128}, nil},
		{"alphanumeric", "ABC-123", Candidate{Code: "ABC-123", Format: FormatCode128}, nil},
		{"bad checksum", "3017620422004", Candidate{}, ErrInvalidChecksum},
		{"empty", "   ", Candidate{}, ErrEmptyCode},
		{"non ascii", "café", Candidate{}, ErrInvalidCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCode(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandUPCE(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"04252614", "042100005264"},
		{"01234565", "012345000065"},
		{"01234531", "012300000451"},
		{"01234543", "012340000053"},
		{"11234562", "112345000062"},
	}
	for _, tt := range tests {
		got, ok := ExpandUPCE(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"24252614", "0425261", "0425261a"} {
		_, ok := ExpandUPCE(bad)
		assert.False(t, ok, bad)
	}
}
