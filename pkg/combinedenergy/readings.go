package combinedenergy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/timsavage/combined-energy-api/pkg/log"
)

// DeviceType discriminates the per-device reading shapes returned by the
// readings endpoint.
type DeviceType string

const (
	DeviceTypeBattery         DeviceType = "BATTERY"
	DeviceTypeCombiner        DeviceType = "COMBINER"
	DeviceTypeEnergyBalance   DeviceType = "ENERGY_BALANCE"
	DeviceTypeEnergyPredicted DeviceType = "ENERGY_PRED"
	DeviceTypeGenericConsumer DeviceType = "GENERIC_CONSUMER"
	DeviceTypeGridMeter       DeviceType = "GRID_METER"
	DeviceTypeMonitor         DeviceType = "MONITOR"
	DeviceTypePoolHeater      DeviceType = "POOL_HEATER"
	DeviceTypeReceiver        DeviceType = "DRED_RECEIVER"
	DeviceTypeSolarPredicted  DeviceType = "SOLAR_PRED"
	DeviceTypeSolarPV         DeviceType = "SOLAR_PV"
	DeviceTypeTank            DeviceType = "TANKPAK"
	DeviceTypeTotal           DeviceType = "TOTAL"
	DeviceTypeWaterHeater     DeviceType = "WATER_HEATER"
)

// Category classifies a device in installation details.
type Category string

const (
	CategoryAirconditioner Category = "AIRCON"
	CategoryBattery        Category = "BATTERY"
	CategoryBuilding       Category = "BUILDING"
	CategoryCarCharger     Category = "CAR_CHARGER"
	CategoryCombiner       Category = "COMBINER"
	CategoryCooking        Category = "COOKING"
	CategoryGridMeter      Category = "GRID_METER"
	CategoryHeating        Category = "HEATING"
	CategoryMonitor        Category = "MONITOR"
	CategoryOthers         Category = "OTHERS"
	CategoryPool           Category = "POOL"
	CategorySolarPV        Category = "SOLAR_PV"
	CategoryTank           Category = "TANKPAK"
	CategoryWaterHeater    Category = "WATER_HEATER"
)

// ReadingsCommon holds the fields shared by readings of every device type.
// All per-sample sequences carry their most recent sample last.
type ReadingsCommon struct {
	DeviceID      *int        `json:"deviceId"`
	RangeStart    *Timestamp  `json:"rangeStart"`
	RangeEnd      *Timestamp  `json:"rangeEnd"`
	Timestamp     []Timestamp `json:"timestamp"`
	SampleSeconds []int       `json:"sampleSecs"`
}

func (c *ReadingsCommon) common() *ReadingsCommon { return c }

// ID reports the device id when the server supplied one.
func (c *ReadingsCommon) ID() (int, bool) {
	if c.DeviceID == nil {
		return 0, false
	}
	return *c.DeviceID, true
}

func (c *ReadingsCommon) validate() error {
	if c.Timestamp == nil {
		return errors.New("missing required field \"timestamp\"")
	}
	return nil
}

// lastSamplePower converts the most recent sample of an energy sequence into
// an instantaneous power figure in kW. Absent whenever either sequence is
// empty or the interval is not usable.
func (c *ReadingsCommon) lastSamplePower(samples []float64) (float64, bool) {
	if len(c.SampleSeconds) == 0 || len(samples) == 0 {
		return 0, false
	}
	kw, err := EnergyToPower(samples[len(samples)-1], float64(c.SampleSeconds[len(c.SampleSeconds)-1]))
	if err != nil {
		return 0, false
	}
	return kw, true
}

// DeviceReadings is the closed union of per-device reading shapes. The
// unexported method restricts implementations to this package; new device
// types are added by extending the decoder table below.
type DeviceReadings interface {
	DeviceType() DeviceType
	ID() (int, bool)
	common() *ReadingsCommon
}

// DeviceReadingsCombiner holds readings from the combiner device.
type DeviceReadingsCombiner struct {
	ReadingsCommon

	EnergySupplied             []*float64 `json:"energySupplied"`
	EnergySuppliedSolar        []*float64 `json:"energySuppliedSolar"`
	EnergySuppliedBattery      []*float64 `json:"energySuppliedBattery"`
	EnergySuppliedGrid         []*float64 `json:"energySuppliedGrid"`
	EnergyConsumedOther        []*float64 `json:"energyConsumedOther"`
	EnergyConsumedOtherSolar   []*float64 `json:"energyConsumedOtherSolar"`
	EnergyConsumedOtherBattery []*float64 `json:"energyConsumedOtherBattery"`
	EnergyConsumedOtherGrid    []*float64 `json:"energyConsumedOtherGrid"`
	EnergyConsumed             []*float64 `json:"energyConsumed"`
	EnergyConsumedSolar        []*float64 `json:"energyConsumedSolar"`
	EnergyConsumedBattery      []*float64 `json:"energyConsumedBattery"`
	EnergyConsumedGrid         []*float64 `json:"energyConsumedGrid"`
	EnergyCorrection           []*float64 `json:"energyCorrection"`
	Temperature                []*float64 `json:"temperature"`
}

func (*DeviceReadingsCombiner) DeviceType() DeviceType { return DeviceTypeCombiner }

// DeviceReadingsSolarPV holds readings from a solar PV inverter.
type DeviceReadingsSolarPV struct {
	ReadingsCommon

	OperationStatus  []*string `json:"operationStatus"`
	OperationMessage []*string `json:"operationMessage"`
	EnergySupplied   []float64 `json:"energySupplied"`
}

func (*DeviceReadingsSolarPV) DeviceType() DeviceType { return DeviceTypeSolarPV }

// PowerSupplied reports the instantaneous generation figure in kW for the
// most recent sample.
func (d *DeviceReadingsSolarPV) PowerSupplied() (float64, bool) {
	return d.lastSamplePower(d.EnergySupplied)
}

func (d *DeviceReadingsSolarPV) String() string {
	if kw, ok := d.PowerSupplied(); ok {
		return fmt.Sprintf("%0.2fkW", kw)
	}
	return "_.__kW"
}

// DeviceReadingsGridMeter holds readings from the grid meter.
type DeviceReadingsGridMeter struct {
	ReadingsCommon

	OperationStatus  []*string `json:"operationStatus"`
	OperationMessage []*string `json:"operationMessage"`

	EnergyConsumed        []float64 `json:"energyConsumed"`
	EnergyConsumedSolar   []float64 `json:"energyConsumedSolar"`
	EnergyConsumedBattery []float64 `json:"energyConsumedBattery"`
}

func (*DeviceReadingsGridMeter) DeviceType() DeviceType { return DeviceTypeGridMeter }

// PowerConsumption reports the instantaneous consumption figure in kW for the
// most recent sample.
func (d *DeviceReadingsGridMeter) PowerConsumption() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumed)
}

// PowerConsumptionSolar reports the solar-sourced share of consumption in kW.
func (d *DeviceReadingsGridMeter) PowerConsumptionSolar() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumedSolar)
}

// PowerConsumptionBattery reports the battery-sourced share of consumption in kW.
func (d *DeviceReadingsGridMeter) PowerConsumptionBattery() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumedBattery)
}

func (d *DeviceReadingsGridMeter) String() string {
	kw, ok := d.PowerConsumption()
	if !ok {
		return "_.__kW (S: _.__kW; B: _.__kW)"
	}
	solar, _ := d.PowerConsumptionSolar()
	battery, _ := d.PowerConsumptionBattery()
	return fmt.Sprintf("%0.2fkW (S: %0.2fkW; B: %0.2fkW)", kw, solar, battery)
}

// DeviceReadingsGenericConsumer holds readings from a generic consumer
// device. Water heater and energy balance readings share this shape.
type DeviceReadingsGenericConsumer struct {
	ReadingsCommon

	OperationStatus  []*string `json:"operationStatus"`
	OperationMessage []*string `json:"operationMessage"`

	EnergyConsumed        []float64 `json:"energyConsumed"`
	EnergyConsumedSolar   []float64 `json:"energyConsumedSolar"`
	EnergyConsumedBattery []float64 `json:"energyConsumedBattery"`
	EnergyConsumedGrid    []float64 `json:"energyConsumedGrid"`
}

func (*DeviceReadingsGenericConsumer) DeviceType() DeviceType { return DeviceTypeGenericConsumer }

// PowerConsumption reports the instantaneous consumption figure in kW for the
// most recent sample.
func (d *DeviceReadingsGenericConsumer) PowerConsumption() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumed)
}

// PowerConsumptionSolar reports the solar-sourced share of consumption in kW.
func (d *DeviceReadingsGenericConsumer) PowerConsumptionSolar() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumedSolar)
}

// PowerConsumptionBattery reports the battery-sourced share of consumption in kW.
func (d *DeviceReadingsGenericConsumer) PowerConsumptionBattery() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumedBattery)
}

// PowerConsumptionGrid reports the grid-sourced share of consumption in kW.
func (d *DeviceReadingsGenericConsumer) PowerConsumptionGrid() (float64, bool) {
	return d.lastSamplePower(d.EnergyConsumedGrid)
}

func (d *DeviceReadingsGenericConsumer) String() string {
	kw, ok := d.PowerConsumption()
	if !ok {
		return "_.__kW (S: _.__kW; G: _.__kW; B: _.__kW)"
	}
	solar, _ := d.PowerConsumptionSolar()
	grid, _ := d.PowerConsumptionGrid()
	battery, _ := d.PowerConsumptionBattery()
	return fmt.Sprintf("%0.2fkW (S: %0.2fkW; G: %0.2fkW; B: %0.2fkW)", kw, solar, grid, battery)
}

// DeviceReadingsWaterHeater holds readings from a water heater.
type DeviceReadingsWaterHeater struct {
	DeviceReadingsGenericConsumer

	AvailableEnergy   []*float64 `json:"availableEnergy"`
	MaxEnergy         []*float64 `json:"maxEnergy"`
	TempSensor1       []*float64 `json:"s1"`
	TempSensor2       []*float64 `json:"s2"`
	TempSensor3       []*float64 `json:"s3"`
	TempSensor4       []*float64 `json:"s4"`
	TempSensor5       []*float64 `json:"s5"`
	TempSensor6       []*float64 `json:"s6"`
	WaterHeaterStatus []*string  `json:"whStatus"`
}

func (*DeviceReadingsWaterHeater) DeviceType() DeviceType { return DeviceTypeWaterHeater }

func lastValue(samples []*float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	last := samples[len(samples)-1]
	if last == nil {
		return 0, false
	}
	return *last, true
}

// EnergyRatio reports the share of stored energy still available, in
// percent, based on the most recent sample. The figure is unrounded.
func (d *DeviceReadingsWaterHeater) EnergyRatio() (float64, bool) {
	if len(d.SampleSeconds) == 0 {
		return 0, false
	}
	available, ok := lastValue(d.AvailableEnergy)
	if !ok {
		return 0, false
	}
	maxEnergy, ok := lastValue(d.MaxEnergy)
	if !ok || maxEnergy == 0 {
		return 0, false
	}
	return available / maxEnergy * 100, true
}

// OutputTemp reports the output water temperature: the maximum across the
// most recent sample of every sensor sequence that is present.
func (d *DeviceReadingsWaterHeater) OutputTemp() (float64, bool) {
	if len(d.SampleSeconds) == 0 {
		return 0, false
	}
	sensors := [][]*float64{
		d.TempSensor1, d.TempSensor2, d.TempSensor3,
		d.TempSensor4, d.TempSensor5, d.TempSensor6,
	}
	var out float64
	var found bool
	for _, sensor := range sensors {
		if v, ok := lastValue(sensor); ok && (!found || v > out) {
			out = v
			found = true
		}
	}
	return out, found
}

func (d *DeviceReadingsWaterHeater) String() string {
	base := d.DeviceReadingsGenericConsumer.String()
	available, ok := lastValue(d.AvailableEnergy)
	if !ok {
		return base + "; Available _l (__%); Temp: __℃"
	}
	ratio, _ := d.EnergyRatio()
	temp, _ := d.OutputTemp()
	return fmt.Sprintf("%s; Available %gl (%02.0f%%); Temp: %02.1f℃", base, available, ratio, temp)
}

// DeviceReadingsEnergyBalance holds the whole-installation energy balance,
// reported with the generic consumer shape.
type DeviceReadingsEnergyBalance struct {
	DeviceReadingsGenericConsumer
}

func (*DeviceReadingsEnergyBalance) DeviceType() DeviceType { return DeviceTypeEnergyBalance }

// deviceDecoders maps a deviceType discriminant to a constructor for the
// matching reading shape. Discriminants without an entry degrade to the
// unknown-devices bucket.
var deviceDecoders = map[DeviceType]func() DeviceReadings{
	DeviceTypeCombiner:        func() DeviceReadings { return &DeviceReadingsCombiner{} },
	DeviceTypeSolarPV:         func() DeviceReadings { return &DeviceReadingsSolarPV{} },
	DeviceTypeGridMeter:       func() DeviceReadings { return &DeviceReadingsGridMeter{} },
	DeviceTypeGenericConsumer: func() DeviceReadings { return &DeviceReadingsGenericConsumer{} },
	DeviceTypeWaterHeater:     func() DeviceReadings { return &DeviceReadingsWaterHeater{} },
	DeviceTypeEnergyBalance:   func() DeviceReadings { return &DeviceReadingsEnergyBalance{} },
}

// PopulateDevices decodes each raw device entry into its typed reading
// shape, partitioning entries that are unrecognised or structurally invalid
// into the second return value. It never fails: a bad entry is logged and
// retained verbatim for diagnostics, input order is preserved within each
// bucket.
func PopulateDevices(ctx context.Context, raw []json.RawMessage) ([]DeviceReadings, []json.RawMessage) {
	logger := log.Ctx(ctx)

	var devices []DeviceReadings
	var unknown []json.RawMessage
	for _, entry := range raw {
		var tag struct {
			DeviceType DeviceType `json:"deviceType"`
		}
		if err := json.Unmarshal(entry, &tag); err != nil {
			logger.Error("device decode failed", slog.Any("error", err))
			logger.Debug("device data", slog.String("data", string(entry)))
			unknown = append(unknown, entry)
			continue
		}

		newDevice, ok := deviceDecoders[tag.DeviceType]
		if !ok {
			logger.Warn("unknown device type", slog.String("deviceType", string(tag.DeviceType)))
			logger.Debug("device data", slog.String("data", string(entry)))
			unknown = append(unknown, entry)
			continue
		}

		device := newDevice()
		if err := json.Unmarshal(entry, device); err == nil {
			err = device.common().validate()
			if err == nil {
				devices = append(devices, device)
				continue
			}
			logger.Error("device validation failed",
				slog.String("deviceType", string(tag.DeviceType)), slog.Any("error", err))
		} else {
			logger.Error("device decode failed",
				slog.String("deviceType", string(tag.DeviceType)), slog.Any("error", err))
		}
		logger.Debug("device data", slog.String("data", string(entry)))
		unknown = append(unknown, entry)
	}
	return devices, unknown
}

// Readings is one reading window: per-device time series between RangeStart
// and RangeEnd sampled every Seconds seconds. Entries the decoder could not
// map are kept verbatim in UnknownDevices.
type Readings struct {
	RangeStart     Timestamp
	RangeEnd       Timestamp
	RangeCount     int
	Seconds        int
	InstallationID int
	ServerTime     Timestamp

	Devices        []DeviceReadings
	UnknownDevices []json.RawMessage
}

type rawReadings struct {
	RangeStart     Timestamp         `json:"rangeStart"`
	RangeEnd       Timestamp         `json:"rangeEnd"`
	RangeCount     int               `json:"rangeCount"`
	Seconds        int               `json:"seconds"`
	InstallationID int               `json:"installationId"`
	ServerTime     Timestamp         `json:"serverTime"`
	Devices        []json.RawMessage `json:"devices"`
}

func decodeReadings(ctx context.Context, data []byte) (*Readings, error) {
	var raw rawReadings
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	devices, unknown := PopulateDevices(ctx, raw.Devices)
	return &Readings{
		RangeStart:     raw.RangeStart,
		RangeEnd:       raw.RangeEnd,
		RangeCount:     raw.RangeCount,
		Seconds:        raw.Seconds,
		InstallationID: raw.InstallationID,
		ServerTime:     raw.ServerTime,
		Devices:        devices,
		UnknownDevices: unknown,
	}, nil
}

func (r *Readings) UnmarshalJSON(data []byte) error {
	decoded, err := decodeReadings(context.Background(), data)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}
