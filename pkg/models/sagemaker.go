package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime/sagemakerruntimeiface"
)

// SageMakerModel invokes a SageMaker real-time endpoint hosting the sequence
// model. The payload is the same TF-Serving document BYOMModel sends.
type SageMakerModel struct {
	endpoint     string
	responsePath string
	client       sagemakerruntimeiface.SageMakerRuntimeAPI
}

// NewSageMakerModel creates a model bound to endpoint in region using the
// default AWS credential chain.
func NewSageMakerModel(endpoint, region, responsePath string) (*SageMakerModel, error) {
	if endpoint == "" {
		return nil, errors.New("sagemaker: endpoint name is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("sagemaker: aws session: %w", err)
	}
	return NewSageMakerModelWithClient(endpoint, responsePath, sagemakerruntime.New(sess)), nil
}

// NewSageMakerModelWithClient wires an existing runtime client.
func NewSageMakerModelWithClient(endpoint, responsePath string, client sagemakerruntimeiface.SageMakerRuntimeAPI) *SageMakerModel {
	if responsePath == "" {
		responsePath = DefaultResponsePath
	}
	return &SageMakerModel{endpoint: endpoint, responsePath: responsePath, client: client}
}

// Name returns the model identifier.
func (m *SageMakerModel) Name() string { return "sagemaker" }

// Predict implements Model.
func (m *SageMakerModel) Predict(ctx context.Context, input Tensor) (float64, error) {
	if len(input.Data) == 0 {
		return 0, fmt.Errorf("sagemaker: %w: empty input", ErrIncompatibleShape)
	}

	body, err := json.Marshal(byomRequest{Instances: input.Nested()})
	if err != nil {
		return 0, fmt.Errorf("sagemaker: marshal request: %w", err)
	}

	out, err := m.client.InvokeEndpointWithContext(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(m.endpoint),
		Body:         body,
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
	})
	if err != nil {
		return 0, fmt.Errorf("sagemaker: invoke %s: %w", m.endpoint, err)
	}

	v, err := extractPrediction(out.Body, m.responsePath)
	if err != nil {
		return 0, fmt.Errorf("sagemaker: %w", err)
	}
	return v, nil
}
