// Package vision reads receipt photos: OCR text extraction and brand-logo
// detection through the Cloud Vision API. Logo detection is best-effort
// enrichment; OCR failure is fatal for the receipt.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

// Annotator is the OCR collaborator consumed by the receipt pipeline.
type Annotator interface {
	// ExtractText runs document text detection over an image and
	// returns the full OCR text.
	ExtractText(ctx context.Context, image []byte, contentType string) (string, error)
	// DetectBrand returns the most confident logo description, or ""
	// when none is found. Failures are swallowed: a missing brand hint
	// never blocks a receipt.
	DetectBrand(ctx context.Context, image []byte, contentType string) string
}

// GoogleVision implements Annotator with the Cloud Vision API.
type GoogleVision struct {
	svc *visionapi.Service
}

// NewGoogleVision creates a Cloud Vision annotator.
func NewGoogleVision(ctx context.Context, opts ...option.ClientOption) (*GoogleVision, error) {
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision service: %w", err)
	}
	return &GoogleVision{svc: svc}, nil
}

// ExtractText runs DOCUMENT_TEXT_DETECTION and returns the OCR text.
func (g *GoogleVision) ExtractText(ctx context.Context, image []byte, contentType string) (string, error) {
	res, err := g.annotate(ctx, image, contentType, "DOCUMENT_TEXT_DETECTION")
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	if res.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(res.FullTextAnnotation.Text), nil
}

// DetectBrand runs LOGO_DETECTION and returns the highest-score logo
// description, or "" on any failure.
func (g *GoogleVision) DetectBrand(ctx context.Context, image []byte, contentType string) string {
	res, err := g.annotate(ctx, image, contentType, "LOGO_DETECTION")
	if err != nil {
		return ""
	}
	var best *visionapi.EntityAnnotation
	for _, a := range res.LogoAnnotations {
		if best == nil || a.Score > best.Score {
			best = a
		}
	}
	if best == nil {
		return ""
	}
	return strings.TrimSpace(best.Description)
}

func (g *GoogleVision) annotate(ctx context.Context, image []byte, contentType, feature string) (*visionapi.AnnotateImageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	png, err := preparePNG(image, contentType)
	if err != nil {
		return nil, err
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(png)},
			Features: []*visionapi.Feature{{Type: feature}},
		}},
	}
	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calling vision API: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("empty vision response")
	}
	res := resp.Responses[0]
	if res.Error != nil {
		return nil, fmt.Errorf("vision API error: %s", res.Error.Message)
	}
	return res, nil
}
