package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareModel(t *testing.T) {
	t.Run("Return existing model path when model exists", func(t *testing.T) {
		modelPath := filepath.Join(ModelDir, "test_mock-model")
		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel("test/mock-model", "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to match existing model path")
	})

	t.Run("Handle model name without slash", func(t *testing.T) {
		expectedPath := filepath.Join(ModelDir, "simple-model")
		err := os.MkdirAll(expectedPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(expectedPath)

		path, err := PrepareModel("simple-model", "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, expectedPath, path, "Expected path to use model name directly")
	})

	t.Run("Specify onnx file path for existing model", func(t *testing.T) {
		modelPath := filepath.Join(ModelDir, "test_onnx-model")
		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel("test/onnx-model", "onnx/model.onnx")
		assert.NoError(t, err, "Expected PrepareModel with onnx path to not return an error")
		assert.Equal(t, modelPath, path)
	})
}

func TestModelDownloadOptions(t *testing.T) {
	t.Run("Empty onnx file path uses the default", func(t *testing.T) {
		options := modelDownloadOptions("")
		assert.Equal(t, DefaultOnnxFilePath, options.OnnxFilePath)
		assert.Equal(t, "onnx/model.onnx", options.OnnxFilePath)
	})

	t.Run("Explicit onnx file path is kept", func(t *testing.T) {
		options := modelDownloadOptions("onnx/model_qint8_avx512.onnx")
		assert.Equal(t, "onnx/model_qint8_avx512.onnx", options.OnnxFilePath)
	})
}
