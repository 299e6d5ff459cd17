package ai

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"platecam/internal/config"
	"platecam/internal/dto"
	"platecam/internal/logger"
)

// PlateRecognizer localises plates with a DNN and reads them with Tesseract.
// Without a model the whole frame is read as a single region.
type PlateRecognizer struct {
	mu         sync.Mutex
	net        gocv.Net
	hasNet     bool
	ocr        *gosseract.Client
	modelPath  string
	configPath string
	confidence float32
	logger     *logger.Logger
}

// NewPlateRecognizer creates the recognizer. A missing model is logged and
// recognition falls back to whole-frame OCR; an OCR setup failure is returned.
func NewPlateRecognizer(cfg *config.Config, logger *logger.Logger) (*PlateRecognizer, error) {
	r := &PlateRecognizer{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ModelConfigPath,
		confidence: float32(cfg.PlateConfidence),
		logger:     logger,
	}

	if err := r.initializeNet(); err != nil {
		r.logger.Warning("Could not initialize plate network, reading whole frames: %v", err)
	}

	r.ocr = gosseract.NewClient()
	if err := r.ocr.SetLanguage(cfg.OCRLanguage); err != nil {
		r.ocr.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := r.ocr.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		r.ocr.Close()
		return nil, fmt.Errorf("failed to set OCR page mode: %w", err)
	}
	if cfg.OCRWhitelist != "" {
		if err := r.ocr.SetWhitelist(cfg.OCRWhitelist); err != nil {
			r.ocr.Close()
			return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
		}
	}
	return r, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (r *PlateRecognizer) initializeNet() error {
	if _, err := os.Stat(r.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", r.modelPath)
	}
	if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", r.configPath)
	}

	net := gocv.ReadNet(r.modelPath, r.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	r.net = net
	r.hasNet = true
	r.logger.Info("Plate network initialized successfully")
	return nil
}

// Recognize returns the plate texts found in a JPEG frame.
func (r *PlateRecognizer) Recognize(ctx context.Context, payload []byte) ([]dto.Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mat, err := gocv.IMDecode(payload, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	regions := []dto.Recognition{{Region: bounds, Confidence: 1}}
	if r.hasNet {
		regions = r.locatePlates(mat, bounds)
	}

	var results []dto.Recognition
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		text, err := r.readRegion(mat, region.Region)
		if err != nil {
			r.logger.Warning("OCR failed for region %v: %v", region.Region, err)
			continue
		}
		if text == "" {
			continue
		}
		region.Text = text
		results = append(results, region)
	}
	return results, nil
}

// locatePlates runs the SSD-style network; output rows are [batch, class, confidence, x1, y1, x2, y2].
func (r *PlateRecognizer) locatePlates(mat gocv.Mat, bounds image.Rectangle) []dto.Recognition {
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	r.net.SetInput(blob, "")
	output := r.net.Forward("")
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	var plates []dto.Recognition
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < r.confidence {
			continue
		}
		rect := image.Rect(
			int(rows.GetFloatAt(i, 3)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 4)*float32(mat.Rows())),
			int(rows.GetFloatAt(i, 5)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 6)*float32(mat.Rows())),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		plates = append(plates, dto.Recognition{Region: rect, Confidence: float64(confidence)})
	}
	return plates
}

func (r *PlateRecognizer) readRegion(mat gocv.Mat, rect image.Rectangle) (string, error) {
	crop := mat.Region(rect)
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray); err != nil {
		return "", fmt.Errorf("failed to convert region to grayscale: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, gray)
	if err != nil {
		return "", fmt.Errorf("failed to encode region: %w", err)
	}
	defer buf.Close()

	if err := r.ocr.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", err
	}
	text, err := r.ocr.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Close releases the network and the OCR engine.
func (r *PlateRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasNet {
		r.net.Close()
		r.hasNet = false
	}
	if r.ocr != nil {
		return r.ocr.Close()
	}
	return nil
}

// Annotator draws recognitions onto frames for clip previews.
type Annotator struct {
	quality int
}

func NewAnnotator(quality int) *Annotator {
	return &Annotator{quality: quality}
}

// Annotate draws each plate box with its text and returns a re-encoded JPEG buffer.
func (a *Annotator) Annotate(payload []byte, recs []dto.Recognition) ([]byte, error) {
	green := color.RGBA{R: 0, G: 255, B: 0, A: 0}

	mat, err := gocv.IMDecode(payload, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	for _, rec := range recs {
		if err := gocv.Rectangle(&mat, rec.Region, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}
		pt := image.Pt(rec.Region.Min.X, rec.Region.Min.Y-5)
		if err := gocv.PutText(&mat, rec.Text, pt, gocv.FontHersheySimplex, 0.8, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, a.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
