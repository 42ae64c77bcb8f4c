package handler

import (
	"encoding/json"
	"fmt"

	"github.com/modelsmith/cardstore/internal/conversion"
	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
)

// Card types accepted by the registry.
const (
	CardTypeModel = "model"
	CardTypeData  = "data"
	CardTypeRun   = "run"
)

// Version bump kinds for auto-versioned registrations.
const (
	VersionMajor = "major"
	VersionMinor = "minor"
	VersionPatch = "patch"
)

// SamplePayload carries the sample input of a model card in one of the three
// supported container shapes. Exactly one field must be set.
type SamplePayload struct {
	Array   *modeldata.NDArray            `json:"array,omitempty"`
	Mapping map[string]*modeldata.NDArray `json:"mapping,omitempty"`
	Table   *modeldata.Table              `json:"table,omitempty"`
}

func (s SamplePayload) Data() (interface{}, error) {
	switch {
	case s.Array != nil:
		return s.Array, nil
	case s.Mapping != nil:
		return s.Mapping, nil
	case s.Table != nil:
		return s.Table, nil
	default:
		return nil, fmt.Errorf("sample data is required for model cards")
	}
}

// ModelSpec is the model-card payload as serialized by client SDKs.
type ModelSpec struct {
	Model            conversion.EstimatorSpec  `json:"model"`
	ModelClass       string                    `json:"model_class"`
	ModelType        string                    `json:"model_type"`
	InterfaceName    string                    `json:"interface_name"`
	SampleData       SamplePayload             `json:"sample_data"`
	SamplePrediction *modeldata.NDArray        `json:"sample_prediction,omitempty"`
	OnnxArgs         *conversion.TorchOnnxArgs `json:"onnx_args,omitempty"`
	ToOnnx           bool                      `json:"to_onnx"`
	TrainedModel     []byte                    `json:"trained_model,omitempty"`
	OnnxModel        []byte                    `json:"onnx_model,omitempty"`
}

// Interface builds the conversion input from the wire payload.
func (m *ModelSpec) Interface() (*conversion.ModelInterface, error) {
	data, err := m.SampleData.Data()
	if err != nil {
		return nil, err
	}
	return &conversion.ModelInterface{
		Model:            m.Model,
		ModelClass:       m.ModelClass,
		ModelType:        m.ModelType,
		InterfaceName:    m.InterfaceName,
		SampleData:       data,
		SamplePrediction: m.SamplePrediction,
		OnnxArgs:         m.OnnxArgs,
		OnnxModel:        m.OnnxModel,
	}, nil
}

type RegisterRequest struct {
	Uid         string            `json:"uid,omitempty"`
	CardType    string            `json:"card_type"`
	Name        string            `json:"name"`
	Repository  string            `json:"repository"`
	Version     string            `json:"version,omitempty"`
	VersionType string            `json:"version_type,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Contents    []byte            `json:"contents,omitempty"`
	DatacardUid string            `json:"datacard_uid,omitempty"`
	RuncardUid  string            `json:"runcard_uid,omitempty"`
	Model       *ModelSpec        `json:"model,omitempty"`
}

type UpdateRequest struct {
	Tags        map[string]string `json:"tags,omitempty"`
	DatacardUid string            `json:"datacard_uid,omitempty"`
	RuncardUid  string            `json:"runcard_uid,omitempty"`
}

type ListRequest struct {
	Uid        string `form:"uid"`
	Name       string `form:"name"`
	Repository string `form:"repository"`
	Version    string `form:"version"`
	CardType   string `form:"card_type"`
	Limit      int    `form:"limit"`
}

type Card struct {
	Uid           string            `json:"uid"`
	Name          string            `json:"name"`
	Repository    string            `json:"repository"`
	Version       string            `json:"version"`
	CardType      string            `json:"card_type"`
	Tags          map[string]string `json:"tags,omitempty"`
	ArtifactUri   string            `json:"artifact_uri"`
	TrainedUri    string            `json:"trained_uri,omitempty"`
	PortableUri   string            `json:"portable_uri,omitempty"`
	ModelClass    string            `json:"model_class,omitempty"`
	ModelType     string            `json:"model_type,omitempty"`
	InterfaceName string            `json:"interface_name,omitempty"`
	DatacardUid   string            `json:"datacard_uid,omitempty"`
	RuncardUid    string            `json:"runcard_uid,omitempty"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

type CardResponse struct {
	Card Card `json:"data"`
}

type ListResponse struct {
	Data []Card `json:"data"`
}

type NamesResponse struct {
	Data []string `json:"data"`
}

type Message struct {
	Message string `json:"message"`
}

type MetadataResponse struct {
	Data json.RawMessage `json:"data"`
}
