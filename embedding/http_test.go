package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExtractor(t *testing.T) {
	t.Run("extract", func(t *testing.T) {
		embedding := make([]float64, 128)
		embedding[0] = 0.5

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)

			var req representRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Facenet", req.ModelName)
			assert.NotEmpty(t, req.Image)

			json.NewEncoder(w).Encode(representResponse{
				Results: []struct {
					Embedding []float64 `json:"embedding"`
				}{{Embedding: embedding}},
			})
		}))
		defer srv.Close()

		extractor, err := NewHTTPExtractor(srv.URL)
		require.NoError(t, err)
		require.Equal(t, 128, extractor.Dimension())

		vector, err := extractor.Extract(context.Background(), []byte("fake-jpeg"))
		require.NoError(t, err)
		require.Len(t, vector, 128)
		assert.Equal(t, float32(0.5), vector[0])
	})

	t.Run("no face detected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(representResponse{})
		}))
		defer srv.Close()

		extractor, err := NewHTTPExtractor(srv.URL)
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), []byte("fake-jpeg"))
		require.Error(t, err)

		var extractErr *Error
		require.True(t, errors.As(err, &extractErr))
		assert.Equal(t, "no face detected", extractErr.Reason)
	})

	t.Run("runtime error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(representResponse{Error: "invalid image"})
		}))
		defer srv.Close()

		extractor, err := NewHTTPExtractor(srv.URL)
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), []byte("not-an-image"))

		var extractErr *Error
		require.True(t, errors.As(err, &extractErr))
		assert.Equal(t, "invalid image", extractErr.Reason)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(representResponse{
				Results: []struct {
					Embedding []float64 `json:"embedding"`
				}{{Embedding: make([]float64, 64)}},
			})
		}))
		defer srv.Close()

		extractor, err := NewHTTPExtractor(srv.URL)
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), []byte("fake-jpeg"))
		require.Error(t, err)
	})

	t.Run("empty image", func(t *testing.T) {
		extractor, err := NewHTTPExtractor("http://unreachable.invalid")
		require.NoError(t, err)

		_, err = extractor.Extract(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("unknown model requires dimension", func(t *testing.T) {
		_, err := NewHTTPExtractor("http://localhost", func(o *HTTPExtractorOptions) {
			o.ModelName = "CustomNet"
		})
		require.Error(t, err)

		extractor, err := NewHTTPExtractor("http://localhost", func(o *HTTPExtractorOptions) {
			o.ModelName = "CustomNet"
			o.Dimension = 256
		})
		require.NoError(t, err)
		assert.Equal(t, 256, extractor.Dimension())
	})
}
