package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facesearch/internal/config"
)

var (
	ErrNoFaceDetected      = errors.New("no face detected")
	ErrModelUnavailable    = errors.New("model unavailable")
	ErrInvalidCropGeometry = errors.New("invalid crop geometry")
	ErrExtractionFailed    = errors.New("embedding extraction failed")
)

// Model is a single-input float32 network. Run returns every output keyed by name.
type Model interface {
	Name() string
	Run(input []float32, shape []int64) (map[string][]float32, error)
}

// OnnxModel wraps a dynamic ONNX Runtime session. Each Run allocates its own
// tensors, so a model can be shared between goroutines.
type OnnxModel struct {
	name        string
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
}

// LoadOnnxModel opens the model at path, discovering its input and output names.
func LoadOnnxModel(path string, opts *ort.SessionOptions) (*OnnxModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect model %s: %w", path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", path)
	}

	outputNames := make([]string, len(outputs))
	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", path, err)
	}

	return &OnnxModel{
		name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		session:     session,
		inputName:   inputs[0].Name,
		outputNames: outputNames,
	}, nil
}

// Name is the model file name without its extension.
func (m *OnnxModel) Name() string { return m.name }

// Run feeds a tensor of the given shape through the session and returns the outputs by name.
func (m *OnnxModel) Run(input []float32, shape []int64) (map[string][]float32, error) {
	in, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := make([]ort.Value, len(m.outputNames))
	if err := m.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("run %s: %w", m.name, err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	result := make(map[string][]float32, len(outputs))
	for i, o := range outputs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %s of %s is not float32", m.outputNames[i], m.name)
		}
		data := t.GetData()
		cp := make([]float32, len(data))
		copy(cp, data)
		result[m.outputNames[i]] = cp
	}
	return result, nil
}

func (m *OnnxModel) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
}

// sortedOutputs returns the output names of a result in lexical order.
func sortedOutputs(outputs map[string][]float32) []string {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type ModelKind string

const (
	KindDetector    ModelKind = "detector"
	KindAttributes  ModelKind = "attributes"
	KindRecognition ModelKind = "recognition"
)

// Registry loads the detector, attribute and recognition models once. Missing
// files or an uninitialised runtime leave the slot empty and the component that
// needs it runs its fallback.
type Registry struct {
	cfg    config.VisionConfig
	once   sync.Once
	models map[ModelKind]Model
}

func NewRegistry(cfg config.VisionConfig) *Registry {
	return &Registry{cfg: cfg, models: make(map[ModelKind]Model)}
}

// NewStaticRegistry builds a registry from already-constructed models. Nil
// entries are treated as unavailable.
func NewStaticRegistry(models map[ModelKind]Model) *Registry {
	r := &Registry{models: make(map[ModelKind]Model)}
	for k, m := range models {
		if m != nil {
			r.models[k] = m
		}
	}
	r.once.Do(func() {})
	return r
}

// Load opens every configured model. Safe to call concurrently; only the
// first call does work.
func (r *Registry) Load() {
	r.once.Do(func() {
		if !ort.IsInitialized() {
			slog.Warn("onnx runtime not initialized, vision runs on fallbacks")
			return
		}
		files := map[ModelKind]string{
			KindDetector:    r.cfg.DetectorModel,
			KindAttributes:  r.cfg.AttributeModel,
			KindRecognition: r.cfg.RecognitionModel,
		}
		for kind, file := range files {
			path := filepath.Join(r.cfg.ModelsDir, file)
			if _, err := os.Stat(path); err != nil {
				slog.Warn("model file missing", "kind", kind, "path", path)
				continue
			}
			m, err := LoadOnnxModel(path, nil)
			if err != nil {
				slog.Warn("load model failed", "kind", kind, "path", path, "error", err)
				continue
			}
			slog.Info("model loaded", "kind", kind, "name", m.Name())
			r.models[kind] = m
		}
	})
}

// Model returns the loaded model of the given kind or ErrModelUnavailable.
func (r *Registry) Model(kind ModelKind) (Model, error) {
	r.Load()
	m, ok := r.models[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, ErrModelUnavailable)
	}
	return m, nil
}

// Status reports which model kinds are loaded.
func (r *Registry) Status() map[string]bool {
	r.Load()
	return map[string]bool{
		string(KindDetector):    r.models[KindDetector] != nil,
		string(KindAttributes):  r.models[KindAttributes] != nil,
		string(KindRecognition): r.models[KindRecognition] != nil,
	}
}

func (r *Registry) Close() {
	for _, m := range r.models {
		if c, ok := m.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
