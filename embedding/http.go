package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultModelName = "Facenet"
	defaultTimeout   = 30 * time.Second
)

// modelDimensions maps known model names to their embedding dimensionality.
var modelDimensions = map[string]int{
	"Facenet":    128,
	"Facenet512": 512,
	"VGG-Face":   4096,
	"ArcFace":    512,
	"SFace":      128,
}

// HTTPExtractorOptions configures an HTTPExtractor.
type HTTPExtractorOptions struct {
	// HTTPClient used for requests. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// ModelName selects the embedding model on the runtime.
	ModelName string

	// Dimension overrides the dimensionality for models not in the
	// built-in table. Required when ModelName is unknown.
	Dimension int

	// Timeout for the default HTTP client.
	Timeout time.Duration
}

// HTTPExtractor extracts embeddings by posting images to a model-runtime
// sidecar speaking the DeepFace represent API: POST {img, model_name},
// response {results: [{embedding: [...]}]}.
type HTTPExtractor struct {
	client    *http.Client
	endpoint  string
	modelName string
	dimension int
}

var _ Extractor = (*HTTPExtractor)(nil)

// NewHTTPExtractor creates an extractor against the runtime's represent
// endpoint, e.g. "http://localhost:5000/represent".
func NewHTTPExtractor(endpoint string, optFns ...func(o *HTTPExtractorOptions)) (*HTTPExtractor, error) {
	opts := HTTPExtractorOptions{
		ModelName: defaultModelName,
		Timeout:   defaultTimeout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	dim := opts.Dimension
	if dim == 0 {
		dim = modelDimensions[opts.ModelName]
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: unknown model %q and no dimension given", opts.ModelName)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPExtractor{
		client:    client,
		endpoint:  endpoint,
		modelName: opts.ModelName,
		dimension: dim,
	}, nil
}

// Dimension implements Extractor.
func (e *HTTPExtractor) Dimension() int { return e.dimension }

type representRequest struct {
	Image     string `json:"img"`
	ModelName string `json:"model_name"`
}

type representResponse struct {
	Results []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"results"`
	Error string `json:"error"`
}

// Extract implements Extractor.
func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, NewError("empty image", nil)
	}

	body, err := json.Marshal(representRequest{
		Image:     "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
		ModelName: e.modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, NewError("model runtime unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, NewError("read model response", err)
	}

	var decoded representResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, NewError("decode model response", err)
	}

	if resp.StatusCode != http.StatusOK {
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("model runtime returned status %d", resp.StatusCode)
		}
		return nil, NewError(reason, nil)
	}

	if len(decoded.Results) == 0 {
		return nil, NewError("no face detected", nil)
	}

	embedding := decoded.Results[0].Embedding
	if len(embedding) != e.dimension {
		return nil, NewError(fmt.Sprintf("model returned %d dimensions, want %d", len(embedding), e.dimension), nil)
	}

	vector := make([]float32, len(embedding))
	for i, v := range embedding {
		vector[i] = float32(v)
	}

	return vector, nil
}
