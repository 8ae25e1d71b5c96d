package session

import "strings"

// Defaults applied by withDefaults for fields left at their zero value.
const (
	DefaultMaxContextLen = 2048
	DefaultMaxNewTokens  = 256
	DefaultBatchSize     = 512
	DefaultTemperature   = 0.8
	DefaultTopP          = 0.95
	DefaultTopK          = 40
)

// Config describes one session. ModelPath is required; numeric fields left
// at zero pick up package defaults, explicit values are validated as-is.
type Config struct {
	ModelPath       string
	MaxContextLen   int
	MaxNewTokens    int
	Temperature     float32
	TopP            float32
	TopK            int
	EnabledCPUsNum  int
	EnabledCPUsMask uint64
	BatchSize       int
	CrossAttention  bool
	UseAccelerator  bool

	// sampled marks Temperature/TopP/TopK as deliberately set, so a zero
	// temperature (greedy decoding) survives default application.
	sampled bool
}

// WithSampling returns a copy of c with explicit sampling parameters. A zero
// temperature here means greedy decoding, not "use the default".
func (c Config) WithSampling(temperature, topP float32, topK int) Config {
	c.Temperature = temperature
	c.TopP = topP
	c.TopK = topK
	c.sampled = true
	return c
}

func (c Config) withDefaults() Config {
	if c.MaxContextLen == 0 {
		c.MaxContextLen = DefaultMaxContextLen
	}
	if c.MaxNewTokens == 0 {
		c.MaxNewTokens = DefaultMaxNewTokens
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if !c.sampled {
		if c.Temperature == 0 {
			c.Temperature = DefaultTemperature
		}
		if c.TopP == 0 {
			c.TopP = DefaultTopP
		}
		if c.TopK == 0 {
			c.TopK = DefaultTopK
		}
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return errConfiguration("modelPath is required")
	}
	if c.MaxContextLen <= 0 {
		return errConfiguration("maxContextLen must be positive, got %d", c.MaxContextLen)
	}
	if c.MaxNewTokens <= 0 {
		return errConfiguration("maxNewTokens must be positive, got %d", c.MaxNewTokens)
	}
	if c.Temperature < 0 {
		return errConfiguration("temperature must be >= 0, got %g", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return errConfiguration("topP must be in [0,1], got %g", c.TopP)
	}
	if c.TopK < 0 {
		return errConfiguration("topK must be >= 0, got %d", c.TopK)
	}
	if c.EnabledCPUsNum < 0 {
		return errConfiguration("enabledCpusNum must be >= 0, got %d", c.EnabledCPUsNum)
	}
	if c.BatchSize <= 0 {
		return errConfiguration("batchSize must be positive, got %d", c.BatchSize)
	}
	return nil
}

// ConfigFromOptions builds a Config from a loosely-typed option bag.
// Recognized keys are listed below; unrecognized keys are ignored so callers
// can pass forward-compatible bags. A recognized key with an unusable value
// is a configuration error.
func ConfigFromOptions(opts map[string]any) (Config, error) {
	var cfg Config
	for key, val := range opts {
		var err error
		switch key {
		case "modelPath":
			cfg.ModelPath, err = optString(key, val)
		case "maxContextLen":
			cfg.MaxContextLen, err = optInt(key, val)
		case "maxNewTokens":
			cfg.MaxNewTokens, err = optInt(key, val)
		case "temperature":
			var f float64
			f, err = optFloat(key, val)
			cfg.Temperature = float32(f)
			cfg.sampled = true
		case "topP":
			var f float64
			f, err = optFloat(key, val)
			cfg.TopP = float32(f)
			cfg.sampled = true
		case "topK":
			cfg.TopK, err = optInt(key, val)
			cfg.sampled = true
		case "enabledCpusNum":
			cfg.EnabledCPUsNum, err = optInt(key, val)
		case "enabledCpusMask":
			var n int64
			n, err = optInt64(key, val)
			cfg.EnabledCPUsMask = uint64(n)
		case "batchSize":
			cfg.BatchSize, err = optInt(key, val)
		case "crossAttention":
			cfg.CrossAttention, err = optBool(key, val)
		case "useAccelerator":
			cfg.UseAccelerator, err = optBool(key, val)
		default:
			// Unknown option: ignore.
		}
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func optString(key string, val any) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", errConfiguration("option %s: expected string, got %T", key, val)
	}
	return s, nil
}

func optBool(key string, val any) (bool, error) {
	b, ok := val.(bool)
	if !ok {
		return false, errConfiguration("option %s: expected bool, got %T", key, val)
	}
	return b, nil
}

// optInt accepts the numeric shapes JSON decoding produces.
func optInt(key string, val any) (int, error) {
	n, err := optInt64(key, val)
	return int(n), err
}

func optInt64(key string, val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, errConfiguration("option %s: expected integer, got %g", key, v)
		}
		return int64(v), nil
	default:
		return 0, errConfiguration("option %s: expected integer, got %T", key, val)
	}
}

func optFloat(key string, val any) (float64, error) {
	switch v := val.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errConfiguration("option %s: expected number, got %T", key, val)
	}
}
