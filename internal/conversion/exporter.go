package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/modelsmith/cardstore/internal/configs"
	"github.com/modelsmith/cardstore/pkg/metric"
	"github.com/rs/zerolog/log"
)

// Framework keys used to select an exporter.
const (
	FrameworkSklearn  = "sklearn"
	FrameworkLightGBM = "lightgbm"
	FrameworkKeras    = "keras"
	FrameworkTorch    = "torch"
)

// extras maps a framework to the conversion extra that must be installed for
// it. Used to name the missing dependency in errors.
var extras = map[string]string{
	FrameworkSklearn:  "skl2onnx",
	FrameworkLightGBM: "onnxmltools",
	FrameworkKeras:    "tf2onnx",
	FrameworkTorch:    "torch-onnx",
}

// TypeDecl is one initial type declaration: the input tensor name, element
// type and shape a conversion routine needs to trace a model graph.
type TypeDecl struct {
	Name  string  `json:"name"`
	Dtype string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}

// ExportRequest is the payload sent to a converter backend.
type ExportRequest struct {
	ModelClass      string                 `json:"model_class"`
	ModelType       string                 `json:"model_type"`
	Estimator       EstimatorSpec          `json:"estimator"`
	InitialTypes    []TypeDecl             `json:"initial_types"`
	Options         map[string]interface{} `json:"options,omitempty"`
	TorchArgs       *TorchOnnxArgs         `json:"torch_args,omitempty"`
	EvalMode        bool                   `json:"eval_mode,omitempty"`
	PatchEstimators []string               `json:"patch_estimators,omitempty"`
}

// Exporter invokes a framework-specific conversion routine and returns
// portable model envelope bytes.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) ([]byte, error)
}

// ExporterSet holds the exporters available in this process. Availability is
// resolved once at startup; a conversion request for an absent framework
// fails fast with ErrMissingDependency naming the exact extra.
type ExporterSet struct {
	exporters map[string]Exporter
}

func NewExporterSet() *ExporterSet {
	return &ExporterSet{exporters: make(map[string]Exporter)}
}

// Set registers the exporter for a framework.
func (s *ExporterSet) Set(framework string, exporter Exporter) {
	s.exporters[framework] = exporter
}

// Get returns the exporter for a framework or ErrMissingDependency.
func (s *ExporterSet) Get(framework string) (Exporter, error) {
	if exporter, ok := s.exporters[framework]; ok {
		return exporter, nil
	}
	extra := extras[framework]
	if extra == "" {
		extra = framework
	}
	return nil, fmt.Errorf("%w: install the %q extra to convert %s models", ErrMissingDependency, extra, framework)
}

// Has reports whether a framework exporter is configured.
func (s *ExporterSet) Has(framework string) bool {
	_, ok := s.exporters[framework]
	return ok
}

// NewExporterSetFromConfig wires HTTP exporters for every converter sidecar
// endpoint present in the configuration.
func NewExporterSetFromConfig(config configs.Configs) *ExporterSet {
	timeout := 30 * time.Second
	if config.ConverterTimeoutMs > 0 {
		timeout = time.Duration(config.ConverterTimeoutMs) * time.Millisecond
	}
	set := NewExporterSet()
	endpoints := map[string]string{
		FrameworkSklearn:  config.SklearnConverterUrl,
		FrameworkLightGBM: config.LightgbmConverterUrl,
		FrameworkKeras:    config.KerasConverterUrl,
		FrameworkTorch:    config.TorchConverterUrl,
	}
	for framework, url := range endpoints {
		if url == "" {
			log.Warn().Str("framework", framework).Msg("Converter endpoint not configured, framework disabled")
			continue
		}
		set.Set(framework, NewHTTPExporter(framework, url, timeout))
	}
	return set
}

// HTTPExporter forwards conversion requests to a converter sidecar service.
type HTTPExporter struct {
	framework  string
	baseURL    string
	httpClient *http.Client
}

func NewHTTPExporter(framework, baseURL string, timeout time.Duration) *HTTPExporter {
	return &HTTPExporter{
		framework: framework,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Export posts the conversion request and returns the portable model envelope
// bytes from the response body.
func (e *HTTPExporter) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling export request: %w", err)
	}

	url := e.baseURL + "/api/v1/convert"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to create converter request")
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to call converter backend")
		return nil, err
	}
	defer resp.Body.Close()

	metricTags := metric.BuildTag(
		metric.NewTag(metric.TagExternalService, "converter-"+e.framework),
		metric.NewTag(metric.TagExternalServiceStatusCode, strconv.Itoa(resp.StatusCode)),
	)
	metric.Incr(metric.ExternalApiRequestCount, metricTags)
	metric.Timing(metric.ExternalApiRequestLatency, time.Since(startTime), metricTags)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading converter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("converter backend returned %d: %s", resp.StatusCode, string(payload))
	}
	return payload, nil
}
