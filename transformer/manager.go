package transformer

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

// Manager holds one payload script per equipment type. Types without a
// script get the built-in JSON and positional payload handling.
type Manager struct {
	transformers map[telemetry.EquipmentType]*Transformer
	mutex        sync.RWMutex
	now          func() time.Time
}

// Transformer is one compiled script. A goja runtime is not safe for
// concurrent use, so calls are serialised.
type Transformer struct {
	vm         *goja.Runtime
	transform  goja.Callable
	scriptPath string
	mu         sync.Mutex
}

// NewManager compiles the scripts of every configured equipment type.
func NewManager(configs map[string]config.Transformer) (*Manager, error) {
	manager := &Manager{
		transformers: make(map[telemetry.EquipmentType]*Transformer),
		now:          time.Now,
	}

	for deviceType, cfg := range configs {
		t, err := telemetry.ParseEquipmentType(deviceType)
		if err != nil {
			return nil, err
		}

		scriptCode, err := loadScript(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "equipment type %s", t)
		}

		transformer, err := newTransformer(scriptCode, cfg.ScriptPath)
		if err != nil {
			return nil, errors.Wrapf(err, "create transformer for %s", t)
		}

		manager.transformers[t] = transformer
		logger.Info("loaded transformer for equipment type %s", t)
	}

	return manager, nil
}

// loadScript prefers inline code over a script file.
func loadScript(cfg config.Transformer) (string, error) {
	if cfg.ScriptCode != "" {
		return cfg.ScriptCode, nil
	}
	if cfg.ScriptPath != "" {
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return "", errors.Wrapf(err, "load script file %s", cfg.ScriptPath)
		}
		return string(scriptBytes), nil
	}
	return "", errors.New("neither script_code nor script_path given")
}

func newTransformer(scriptCode, scriptPath string) (*Transformer, error) {
	vm := goja.New()

	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("parseJSON", func(jsonStr string) interface{} {
		var data interface{}
		if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
			logger.Warn("parseJSON failed: %v", err)
			return nil
		}
		return data
	})

	_ = vm.Set("formatDate", func(timestamp int64, format string) string {
		if format == "" {
			format = time.RFC3339
		}
		return time.Unix(timestamp, 0).UTC().Format(format)
	})

	// splitPayload("a\nb") and splitPayload("a,b") both yield ["a","b"]
	_ = vm.Set("splitPayload", func(raw string) []string {
		raw = strings.TrimRight(strings.ReplaceAll(raw, "\r", ""), "\n")
		if strings.Contains(raw, "\n") {
			return strings.Split(raw, "\n")
		}
		return strings.Split(raw, ",")
	})

	_ = vm.Set("validateRange", func(value float64, min float64, max float64) bool {
		return value >= min && value <= max
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, errors.Wrap(err, "run script")
	}

	transformValue := vm.Get("transform")
	if transformValue == nil {
		return nil, errors.New("script does not define a 'transform' function")
	}

	transform, ok := goja.AssertFunction(transformValue)
	if !ok {
		return nil, errors.New("'transform' is not a function")
	}

	return &Transformer{
		vm:         vm,
		transform:  transform,
		scriptPath: scriptPath,
	}, nil
}

func (t *Transformer) run(data []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result, err := t.transform(goja.Undefined(), t.vm.ToValue(string(data)))
	if err != nil {
		return nil, errors.Wrap(err, "run transform")
	}

	exported := result.Export()
	if s, ok := exported.(string); ok {
		return []byte(s), nil
	}
	out, err := json.Marshal(exported)
	if err != nil {
		return nil, errors.Wrap(err, "marshal script result")
	}
	return out, nil
}

// Has reports whether a script is loaded for the type.
func (m *Manager) Has(t telemetry.EquipmentType) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.transformers[t]
	return ok
}

// Transform runs the script of the equipment type, if any, and normalises
// the result. equipmentID fills samples that do not name their unit.
func (m *Manager) Transform(t telemetry.EquipmentType, equipmentID string, data []byte) (Message, error) {
	m.mutex.RLock()
	transformer, exists := m.transformers[t]
	m.mutex.RUnlock()

	if exists {
		out, err := transformer.run(data)
		if err != nil {
			return Message{}, errors.Wrapf(err, "transform %s payload", t)
		}
		data = out
	}

	msg, err := normalize(data, t, equipmentID, m.now())
	if err != nil {
		return Message{}, errors.Wrapf(err, "normalize %s payload", t)
	}
	return msg, nil
}

// ReloadTransformer replaces the script of one equipment type.
func (m *Manager) ReloadTransformer(deviceType string, cfg config.Transformer) error {
	t, err := telemetry.ParseEquipmentType(deviceType)
	if err != nil {
		return err
	}

	scriptCode, err := loadScript(cfg)
	if err != nil {
		return err
	}

	transformer, err := newTransformer(scriptCode, cfg.ScriptPath)
	if err != nil {
		return errors.Wrapf(err, "create transformer for %s", t)
	}

	m.mutex.Lock()
	m.transformers[t] = transformer
	m.mutex.Unlock()

	logger.Info("reloaded transformer for equipment type %s", t)
	return nil
}
