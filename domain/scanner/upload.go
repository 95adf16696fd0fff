package scanner

import (
	"context"
	"io"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// maxUploadBytes caps how much of an upload is read before decoding.
const maxUploadBytes = 32 << 20

// SubmitImage decodes one still image and runs the static capability on
// it. It is valid in any camera state and never touches the capture
// session. The outcome is returned and also delivered to Callbacks; a
// non-nil error is always a *ScanError.
func (c *Controller) SubmitImage(ctx context.Context, r io.Reader) (ScanResult, error) {
	c.setUpload(UploadPending)
	res, serr := c.scanImage(ctx, r)
	if serr != nil {
		c.finishUpload("upload", UploadError, ScanResult{}, serr)
		return ScanResult{}, serr
	}
	c.finishUpload("upload", UploadDetected, res, nil)
	return res, nil
}

func (c *Controller) scanImage(ctx context.Context, r io.Reader) (ScanResult, *ScanError) {
	if !c.still.Available() {
		return ScanResult{}, newScanError(KindCapabilityUnavailable, msgStillUnsupported, recognition.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return ScanResult{}, newScanError(KindUnknown, msgUploadFailed, err)
	}
	img, err := imaging.Decode(io.LimitReader(r, maxUploadBytes), imaging.AutoOrientation(true))
	if err != nil {
		return ScanResult{}, newScanError(KindDecodeFailed, msgUploadFailed, err)
	}
	seq, err := c.still.Detect(ctx, img)
	if err != nil {
		return ScanResult{}, classifyStill(err)
	}
	cand, ok := recognition.First(seq)
	if err := ctx.Err(); err != nil {
		return ScanResult{}, newScanError(KindUnknown, msgUploadFailed, err)
	}
	if !ok {
		return ScanResult{}, newScanError(KindDecodeFailed, msgNoBarcode, nil)
	}
	return ScanResult{Code: cand.Code, Format: cand.Format, Method: MethodUploaded, DetectedAt: time.Now()}, nil
}

// SubmitCode accepts a code typed by the user. Numeric codes of GTIN length
// must carry a valid check digit. Like SubmitImage it shares the upload
// state and never touches the camera.
func (c *Controller) SubmitCode(code string) (ScanResult, error) {
	c.setUpload(UploadPending)
	cand, err := recognition.ParseCode(code)
	if err != nil {
		serr := classifyCode(err)
		c.finishUpload("manual", UploadError, ScanResult{}, serr)
		return ScanResult{}, serr
	}
	res := ScanResult{Code: cand.Code, Format: cand.Format, Method: MethodManual, DetectedAt: time.Now()}
	c.finishUpload("manual", UploadDetected, res, nil)
	return res, nil
}

func (c *Controller) setUpload(s UploadState) {
	c.mu.Lock()
	c.upload = s
	c.mu.Unlock()
}

func (c *Controller) finishUpload(op string, s UploadState, res ScanResult, serr *ScanError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upload = s
	if serr != nil {
		recordError(op, serr)
		if c.logger != nil {
			c.logger.Info("scanner."+op+" failed", "kind", string(serr.Kind), "error", serr.Err)
		}
		c.emitError(serr)
		return
	}
	recordDetection(res)
	if c.logger != nil {
		c.logger.Info("scanner."+op+" detected", "code", res.Code, "format", res.Format.String())
	}
	c.emitResult(res)
}
