package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

// sequenceLength is the fixed input length the model was exported with; the
// tokenizer pads and truncates to it.
const sequenceLength = 128

var ortInitOnce sync.Once
var ortInitErr error

// ONNXClassifier runs a local pre-trained sentiment model through the ONNX
// runtime. Tokenization is delegated to a helper process because the
// checkpoint's tokenizer has no Go port.
type ONNXClassifier struct {
	libraryPath   string
	modelPath     string
	tokenizerArgs []string
	logger        *zap.SugaredLogger
}

func NewONNXClassifier(libraryPath, modelPath string, logger *zap.SugaredLogger) *ONNXClassifier {
	return &ONNXClassifier{
		libraryPath:   libraryPath,
		modelPath:     modelPath,
		tokenizerArgs: []string{"python", "scripts/tokenize_text.py"},
		logger:        logger,
	}
}

type tokenizedOutput struct {
	InputIDs      []int64 `json:"input_ids"`
	AttentionMask []int64 `json:"attention_mask"`
}

// initializeORT handles the one-time initialization of the ONNX runtime.
func (c *ONNXClassifier) initializeORT() error {
	ortInitOnce.Do(func() {
		if c.libraryPath == "" {
			ortInitErr = fmt.Errorf("ONNX_DLL_PATH is not set")
			return
		}
		onnxruntime.SetSharedLibraryPath(c.libraryPath)
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("initializing ONNX runtime environment: %w", err)
		}
	})
	return ortInitErr
}

func (c *ONNXClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if err := c.initializeORT(); err != nil {
		return Result{}, err
	}

	input, err := c.tokenize(ctx, text)
	if err != nil {
		return Result{}, err
	}
	if len(input.InputIDs) != sequenceLength || len(input.AttentionMask) != sequenceLength {
		return Result{}, fmt.Errorf("tokenized input length mismatch: expected %d, got %d input_ids and %d attention_mask",
			sequenceLength, len(input.InputIDs), len(input.AttentionMask))
	}

	shape := onnxruntime.Shape{1, sequenceLength}
	inputIDsTensor, err := onnxruntime.NewTensor(shape, input.InputIDs)
	if err != nil {
		return Result{}, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()
	attentionMaskTensor, err := onnxruntime.NewTensor(shape, input.AttentionMask)
	if err != nil {
		return Result{}, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer attentionMaskTensor.Destroy()

	outputTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.Shape{1, 3})
	if err != nil {
		return Result{}, fmt.Errorf("creating output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := onnxruntime.NewAdvancedSession(
		c.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]onnxruntime.Value{inputIDsTensor, attentionMaskTensor},
		[]onnxruntime.Value{outputTensor},
		nil,
	)
	if err != nil {
		return Result{}, fmt.Errorf("creating ONNX session: %w", err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return Result{}, fmt.Errorf("ONNX inference run: %w", err)
	}

	logits := outputTensor.GetData()
	if len(logits) != 3 {
		return Result{}, fmt.Errorf("unexpected logits length %d, expected 3", len(logits))
	}

	labels := []Label{Negative, Neutral, Positive}
	probabilities := softmax(logits)
	maxIdx := 0
	for i := 1; i < len(probabilities); i++ {
		if probabilities[i] > probabilities[maxIdx] {
			maxIdx = i
		}
	}

	c.logger.Debugw("Classified snippet", "model", c.modelPath, "label", labels[maxIdx], "score", probabilities[maxIdx])
	return Result{Label: labels[maxIdx], Score: float64(probabilities[maxIdx])}, nil
}

// tokenize shells out to the tokenizer helper and picks the JSON line off its
// output, which may be preceded by library warnings.
func (c *ONNXClassifier) tokenize(ctx context.Context, text string) (tokenizedOutput, error) {
	args := append(c.tokenizerArgs[1:], text)
	cmd := exec.CommandContext(ctx, c.tokenizerArgs[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return tokenizedOutput{}, fmt.Errorf("tokenizer helper failed: %v, output: %s", err, out)
	}

	lines := bytes.Split(out, []byte("\n"))
	var jsonLine []byte
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(string(lines[i]))
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			jsonLine = lines[i]
			break
		}
	}
	if jsonLine == nil {
		return tokenizedOutput{}, fmt.Errorf("no JSON found in tokenizer output: %s", out)
	}

	var input tokenizedOutput
	if err := json.Unmarshal(jsonLine, &input); err != nil {
		return tokenizedOutput{}, fmt.Errorf("parsing tokenizer JSON: %w", err)
	}
	return input, nil
}

func softmax(logits []float32) []float32 {
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	out := make([]float32, len(logits))
	expSum := float32(0.0)
	for i := range logits {
		out[i] = float32(math.Exp(float64(logits[i] - max))) // prevent overflow
		expSum += out[i]
	}
	for i := range out {
		out[i] /= expSum
	}
	return out
}
