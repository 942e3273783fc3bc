package services

import (
	"context"
	"errors"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	gax "github.com/googleapis/gax-go/v2"

	"nutritrack/classifier"
)

type fakeRekognition struct {
	custom *rekognition.DetectCustomLabelsOutput
	labels *rekognition.DetectLabelsOutput
	err    error
	lastIn *rekognition.DetectCustomLabelsInput
}

func (f *fakeRekognition) DetectCustomLabels(_ context.Context, in *rekognition.DetectCustomLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error) {
	f.lastIn = in
	return f.custom, f.err
}

func (f *fakeRekognition) DetectLabels(_ context.Context, _ *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	return f.labels, f.err
}

var jpeg = classifier.Frame{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}

func TestRekognitionCustomLabels(t *testing.T) {
	fake := &fakeRekognition{custom: &rekognition.DetectCustomLabelsOutput{
		CustomLabels: []types.CustomLabel{
			{Name: aws.String("sinigang_pork"), Confidence: aws.Float32(85)},
			{Name: aws.String("Chicken Adobo"), Confidence: aws.Float32(10)},
		},
	}}
	rc := &RekognitionClassifier{client: fake, projectArn: "arn:aws:rekognition:project/v1", minConf: 40}

	preds, err := rc.Predict(context.Background(), jpeg)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 2 || preds[0].Label != "sinigang_pork" || preds[1].Label != "adobo_chicken" {
		t.Fatalf("preds = %+v", preds)
	}
	if !approx(preds[0].Confidence, 0.85) {
		t.Fatalf("confidence = %v", preds[0].Confidence)
	}
	if aws.ToInt32(fake.lastIn.MaxResults) != classifier.MaxPredictions {
		t.Fatalf("max results = %d", aws.ToInt32(fake.lastIn.MaxResults))
	}
}

func TestRekognitionGenericLabelsFallBackToNegative(t *testing.T) {
	fake := &fakeRekognition{labels: &rekognition.DetectLabelsOutput{
		Labels: []types.Label{
			{Name: aws.String("Table"), Confidence: aws.Float32(92)},
			{Name: aws.String("Plate"), Confidence: aws.Float32(80)},
		},
	}}
	rc := &RekognitionClassifier{client: fake, minConf: 40}

	preds, err := rc.Predict(context.Background(), jpeg)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 1 || preds[0].Label != classifier.NegativeLabel || !approx(preds[0].Confidence, 0.92) {
		t.Fatalf("preds = %+v", preds)
	}
}

func TestRekognitionErrors(t *testing.T) {
	rc := &RekognitionClassifier{client: &fakeRekognition{err: errors.New("throttled")}}
	if _, err := rc.Predict(context.Background(), classifier.Frame{}); err == nil {
		t.Fatal("empty frame accepted")
	}
	if _, err := rc.Predict(context.Background(), jpeg); err == nil {
		t.Fatal("client error swallowed")
	}
}

type fakeVision struct {
	resp *visionpb.BatchAnnotateImagesResponse
	err  error
}

func (f *fakeVision) BatchAnnotateImages(context.Context, *visionpb.BatchAnnotateImagesRequest, ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	return f.resp, f.err
}

func visionLabels(pairs ...any) *visionpb.BatchAnnotateImagesResponse {
	var anns []*visionpb.EntityAnnotation
	for i := 0; i < len(pairs); i += 2 {
		anns = append(anns, &visionpb.EntityAnnotation{Description: pairs[i].(string), Score: pairs[i+1].(float32)})
	}
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{LabelAnnotations: anns}},
	}
}

func TestVisionClassifier(t *testing.T) {
	cases := []struct {
		name  string
		resp  *visionpb.BatchAnnotateImagesResponse
		label string
	}{
		{"known dish", visionLabels("Food", float32(0.97), "Halo-Halo", float32(0.81)), "halo_halo"},
		{"nothing known", visionLabels("Tableware", float32(0.9)), classifier.NegativeLabel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &VisionClassifier{client: &fakeVision{resp: tc.resp}}
			preds, err := v.Predict(context.Background(), jpeg)
			if err != nil {
				t.Fatal(err)
			}
			if len(preds) != 1 || preds[0].Label != tc.label {
				t.Fatalf("preds = %+v", preds)
			}
		})
	}

	v := &VisionClassifier{client: &fakeVision{resp: &visionpb.BatchAnnotateImagesResponse{}}}
	if preds, err := v.Predict(context.Background(), jpeg); err != nil || len(preds) != 0 {
		t.Fatalf("empty response: %+v, %v", preds, err)
	}
}
