package models

import "time"

// Pond is an aquaculture pond being monitored
type Pond struct {
	ID          uint32  `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Location    string  `gorm:"size:255" json:"location"`
	AreaM2      float64 `json:"area_m2"`
	DepthM      float64 `json:"depth_m"`
	FishSpecies string  `gorm:"size:100" json:"fish_species"`
	Active      bool    `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Pond) TableName() string {
	return "ponds"
}

// SensorReading stores one timestamped set of water-quality measurements for
// a pond. Every measurement column is nullable: a nil value means the sensor
// did not report that parameter and downstream evaluation skips it.
type SensorReading struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	PondID    uint32    `gorm:"not null;index:idx_pond_timestamp" json:"pond_id"`
	Timestamp time.Time `gorm:"not null;index:idx_pond_timestamp" json:"timestamp"`

	Temperature     *float64 `json:"temperature,omitempty"`      // Celsius
	PH              *float64 `gorm:"column:ph" json:"ph,omitempty"`
	DissolvedOxygen *float64 `json:"dissolved_oxygen,omitempty"` // mg/L
	Turbidity       *float64 `json:"turbidity,omitempty"`        // NTU
	Ammonia         *float64 `json:"ammonia,omitempty"`          // mg/L
	Nitrate         *float64 `json:"nitrate,omitempty"`          // mg/L
	Nitrite         *float64 `json:"nitrite,omitempty"`          // mg/L
	Salinity        *float64 `json:"salinity,omitempty"`         // ppt
	WaterLevel      *float64 `json:"water_level,omitempty"`      // cm
	FlowRate        *float64 `json:"flow_rate,omitempty"`        // L/min

	FishCount  *int     `json:"fish_count,omitempty"`
	FishLength *float64 `json:"fish_length,omitempty"` // cm
	FishWeight *float64 `json:"fish_weight,omitempty"` // grams

	DataSource   string   `gorm:"size:50;default:sensor" json:"data_source"`
	QualityScore *float64 `json:"quality_score,omitempty"`
	IsAnomaly    bool     `gorm:"default:false;not null" json:"is_anomaly"`

	CreatedAt time.Time `json:"created_at"`

	Pond Pond `gorm:"foreignKey:PondID" json:"pond,omitempty"`
}

func (SensorReading) TableName() string {
	return "sensor_readings"
}

// Value returns the reading's value for the given parameter, or nil when the
// parameter is absent or unknown.
func (r *SensorReading) Value(p Parameter) *float64 {
	switch p {
	case ParamTemperature:
		return r.Temperature
	case ParamPH:
		return r.PH
	case ParamDissolvedOxygen:
		return r.DissolvedOxygen
	case ParamTurbidity:
		return r.Turbidity
	case ParamAmmonia:
		return r.Ammonia
	case ParamNitrate:
		return r.Nitrate
	case ParamNitrite:
		return r.Nitrite
	case ParamSalinity:
		return r.Salinity
	case ParamWaterLevel:
		return r.WaterLevel
	case ParamFlowRate:
		return r.FlowRate
	default:
		return nil
	}
}
