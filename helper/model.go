package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// ModelDir is where embedding models are downloaded to
const ModelDir = "./models"

// DefaultOnnxFilePath is the onnx file used when none is given. Sentence
// transformer repositories ship several optimized variants next to it and
// hugot refuses to pick one on its own.
const DefaultOnnxFilePath = "onnx/model.onnx"

// PrepareModel downloads the model if it doesn't exist and returns the model path.
// onnxFilePath selects the onnx file inside the repository, empty means DefaultOnnxFilePath.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelPath := filepath.Join(ModelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(ModelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadedPath, err := hugot.DownloadModel(modelName, ModelDir, modelDownloadOptions(onnxFilePath))
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}

func modelDownloadOptions(onnxFilePath string) hugot.DownloadOptions {
	options := hugot.NewDownloadOptions()
	if onnxFilePath == "" {
		onnxFilePath = DefaultOnnxFilePath
	}
	options.OnnxFilePath = onnxFilePath
	return options
}
