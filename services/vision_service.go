package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"nutritrack/classifier"
)

type visionAPI interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// VisionClassifier maps Google Cloud Vision label detection onto the dish
// label table. Labels outside the table are dropped; if Vision saw
// something but nothing matched, the frame is reported as negative.
type VisionClassifier struct {
	client visionAPI
	closer func() error
}

// visionClientOptions reads GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or
// GOOGLE_APPLICATION_CREDENTIALS (path).
func visionClientOptions() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func NewVisionClassifier(ctx context.Context) (*VisionClassifier, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, visionClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionClassifier{client: c, closer: c.Close}, nil
}

func (v *VisionClassifier) Close() error {
	if v == nil || v.closer == nil {
		return nil
	}
	return v.closer()
}

func (v *VisionClassifier) Predict(ctx context.Context, frame classifier.Frame) ([]classifier.Prediction, error) {
	if len(frame.Data) == 0 {
		return nil, errors.New("empty frame")
	}
	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: frame.Data},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 15},
		},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	var preds []classifier.Prediction
	for _, l := range r0.LabelAnnotations {
		label := classifier.NormalizeLabel(l.GetDescription())
		if classifier.IsSupported(label) {
			preds = append(preds, classifier.Prediction{Label: label, Confidence: float64(l.GetScore())})
		}
	}
	if len(preds) == 0 && len(r0.LabelAnnotations) > 0 {
		preds = append(preds, classifier.Prediction{
			Label:      classifier.NegativeLabel,
			Confidence: float64(r0.LabelAnnotations[0].GetScore()),
		})
	}
	return preds, nil
}
