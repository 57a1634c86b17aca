package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/utils"
	"github.com/edgeworks-io/hrtcore/work"
)

// Model is a named driver-constructor key: drivers register a Constructor under a Model in
// init(), and configuration selects a driver by naming its Model.
type Model string

// Constructor builds and initializes a driver from cfg, returning the Measurer the framework will
// register and start. Implementations construct their concrete type, call Base.Init on it, and
// return self.
type Constructor func(cfg DriverConfig, workMgr *work.Manager, devMgr *Manager, logger logging.Logger) (Measurer, error)

var (
	registryMu sync.Mutex
	registry   = make(map[Model]Constructor)
)

// RegisterDriverModel adds ctor to the global model registry. Intended to be called from a
// driver package's init().
func RegisterDriverModel(model Model, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = ctor
}

// NewDriverFromModel looks up model in the registry and invokes its constructor.
func NewDriverFromModel(model Model, cfg DriverConfig, workMgr *work.Manager, devMgr *Manager, logger logging.Logger) (Measurer, error) {
	registryMu.Lock()
	ctor, ok := registry[model]
	registryMu.Unlock()
	if !ok {
		return nil, utils.NewNotFoundError(string(model))
	}
	return ctor(cfg, workMgr, devMgr, logger)
}

// DriverConfig is the declarative description of one configured driver instance. Framework walks
// a slice of these at startup to construct and register drivers through the model registry.
type DriverConfig struct {
	Name             string                 `json:"name"`
	Model            Model                  `json:"model"`
	BusType          BusType                `json:"bus_type"`
	BusIndex         uint8                  `json:"bus_index"`
	Address          uint8                  `json:"address"`
	Devtype          uint8                  `json:"devtype"`
	DevBasePath      string                 `json:"dev_base_path"`
	SampleIntervalUS uint64                 `json:"sample_interval_us"`
	Attributes       map[string]interface{} `json:"attributes,omitempty"`
}

// ID packs the config's bus/address/devtype fields into a device ID.
func (c DriverConfig) ID() ID {
	return PackID(c.BusType, c.BusIndex, c.Address, c.Devtype)
}

// SampleInterval returns the configured sample interval as a time.Duration.
func (c DriverConfig) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalUS) * time.Microsecond
}

// Validate checks the per-field invariants Framework.LoadConfig relies on, returning a
// path-qualified error so a caller loading many configs can point at the offending entry.
func (c DriverConfig) Validate(path string) error {
	if c.Name == "" {
		return fmt.Errorf("%s: name is required", path)
	}
	if c.Model == "" {
		return fmt.Errorf("%s: model is required", path)
	}
	if c.DevBasePath == "" {
		return fmt.Errorf("%s: dev_base_path is required", path)
	}
	if c.SampleIntervalUS == 0 {
		return fmt.Errorf("%s: sample_interval_us must be > 0", path)
	}
	return nil
}
