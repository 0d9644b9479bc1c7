package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// annotator is the subset of vision.ImageAnnotatorClient used here, so tests
// can substitute a fake.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionEngine runs Google Cloud Vision document text detection and reports
// one detection per paragraph.
type VisionEngine struct {
	client    annotator
	languages []string
}

// NewVisionEngine dials the Cloud Vision API. Credentials come from
// cfg.VisionCredentialsFile or the application default credentials.
func NewVisionEngine(ctx context.Context, cfg Config) (*VisionEngine, error) {
	var opts []option.ClientOption
	if cfg.VisionCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.VisionCredentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionEngine{client: client, languages: cfg.Languages}, nil
}

// Detect implements Engine.
func (v *VisionEngine) Detect(ctx context.Context, data []byte) ([]Detection, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: data},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: v.languages},
		}},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}

	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return nil, fmt.Errorf("vision annotate: %s (code %d)", st.GetMessage(), st.GetCode())
	}
	return paragraphDetections(r.GetFullTextAnnotation()), nil
}

// Close implements Engine.
func (v *VisionEngine) Close() error {
	return v.client.Close()
}

func paragraphDetections(ann *visionpb.TextAnnotation) []Detection {
	var dets []Detection
	for _, page := range ann.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				vs := para.GetBoundingBox().GetVertices()
				if len(vs) < 4 {
					continue
				}
				var q geometry.Quad
				for i := range q {
					q[i] = geometry.Point{X: float64(vs[i].GetX()), Y: float64(vs[i].GetY())}
				}
				dets = append(dets, Detection{
					Quad:       q,
					Text:       paragraphText(para),
					Confidence: float64(para.GetConfidence()),
				})
			}
		}
	}
	return dets
}

// paragraphText rebuilds text from symbols, honouring the detected breaks so
// languages written without spaces are not split.
func paragraphText(para *visionpb.Paragraph) string {
	var sb strings.Builder
	for _, word := range para.GetWords() {
		for _, sym := range word.GetSymbols() {
			sb.WriteString(sym.GetText())
			switch sym.GetProperty().GetDetectedBreak().GetType() {
			case visionpb.TextAnnotation_DetectedBreak_SPACE,
				visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
				visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
				visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
				sb.WriteByte(' ')
			case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
				sb.WriteByte('-')
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
