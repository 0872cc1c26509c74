package telemetry

import "time"

// DeviceSample is one document of the mqtt_db collection: a reading of a
// single sub-device inside an equipment unit. Readings are optional so a
// missing channel is not confused with a zero current.
type DeviceSample struct {
	DeviceID        int           `json:"deviceid" bson:"deviceid" validate:"gte=0,lte=255"`
	CurrentRed      *float64      `json:"current_red,omitempty" bson:"current_red,omitempty" validate:"omitempty,gte=0"`
	CurrentGreen    *float64      `json:"current_green,omitempty" bson:"current_green,omitempty" validate:"omitempty,gte=0"`
	VoltageRed      *float64      `json:"voltage_red,omitempty" bson:"voltage_red,omitempty" validate:"omitempty,gte=0"`
	VoltageGreen    *float64      `json:"voltage_green,omitempty" bson:"voltage_green,omitempty" validate:"omitempty,gte=0"`
	OffCurrentRed   *float64      `json:"off_current_red,omitempty" bson:"off_current_red,omitempty"`
	OffCurrentGreen *float64      `json:"off_current_green,omitempty" bson:"off_current_green,omitempty"`
	Temperature     *float64      `json:"temperature,omitempty" bson:"temperature,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at" validate:"required"`
	EquipmentType   EquipmentType `json:"equipment_type" bson:"equipment_type" validate:"required,oneof=AGL DGL VGL BGL LGL"`
	EquipmentID     string        `json:"equipment_id" bson:"equipment_id" validate:"required"`
}

// Float is a small helper for building optional readings.
func Float(f float64) *float64 {
	return &f
}
