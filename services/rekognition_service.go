package services

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"nutritrack/classifier"
)

// rekognitionAPI is the slice of the Rekognition client the classifier calls.
type rekognitionAPI interface {
	DetectCustomLabels(ctx context.Context, in *rekognition.DetectCustomLabelsInput, opts ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error)
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, opts ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionClassifier runs frames through a Rekognition Custom Labels
// project trained on the dish label table. Without a project version it
// falls back to generic DetectLabels and folds label names into the table.
type RekognitionClassifier struct {
	client     rekognitionAPI
	projectArn string
	minConf    float32
}

func NewRekognitionClassifier(cfg aws.Config, projectVersionArn string) *RekognitionClassifier {
	return &RekognitionClassifier{
		client:     rekognition.NewFromConfig(cfg),
		projectArn: projectVersionArn,
		minConf:    40,
	}
}

func (r *RekognitionClassifier) Predict(ctx context.Context, frame classifier.Frame) ([]classifier.Prediction, error) {
	if len(frame.Data) == 0 {
		return nil, errors.New("empty frame")
	}
	img := &types.Image{Bytes: frame.Data}

	if r.projectArn != "" {
		out, err := r.client.DetectCustomLabels(ctx, &rekognition.DetectCustomLabelsInput{
			Image:             img,
			ProjectVersionArn: aws.String(r.projectArn),
			MaxResults:        aws.Int32(classifier.MaxPredictions),
			MinConfidence:     aws.Float32(r.minConf),
		})
		if err != nil {
			return nil, err
		}
		preds := make([]classifier.Prediction, 0, len(out.CustomLabels))
		for _, l := range out.CustomLabels {
			preds = append(preds, classifier.Prediction{
				Label:      classifier.NormalizeLabel(aws.ToString(l.Name)),
				Confidence: float64(aws.ToFloat32(l.Confidence)) / 100,
			})
		}
		return preds, nil
	}

	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         img,
		MaxLabels:     aws.Int32(10),
		MinConfidence: aws.Float32(r.minConf),
	})
	if err != nil {
		return nil, err
	}
	var preds []classifier.Prediction
	for _, l := range out.Labels {
		label := classifier.NormalizeLabel(aws.ToString(l.Name))
		if !classifier.IsSupported(label) {
			continue
		}
		preds = append(preds, classifier.Prediction{
			Label:      label,
			Confidence: float64(aws.ToFloat32(l.Confidence)) / 100,
		})
	}
	if len(preds) == 0 && len(out.Labels) > 0 {
		// Something is in frame but none of it is a known dish.
		preds = append(preds, classifier.Prediction{
			Label:      classifier.NegativeLabel,
			Confidence: float64(aws.ToFloat32(out.Labels[0].Confidence)) / 100,
		})
	}
	return preds, nil
}
