package models

// Parameter identifies a water-quality measurement tracked per reading.
type Parameter string

const (
	ParamTemperature     Parameter = "temperature"
	ParamPH              Parameter = "ph"
	ParamDissolvedOxygen Parameter = "dissolved_oxygen"
	ParamTurbidity       Parameter = "turbidity"
	ParamAmmonia         Parameter = "ammonia"
	ParamNitrate         Parameter = "nitrate"
	ParamNitrite         Parameter = "nitrite"
	ParamSalinity        Parameter = "salinity"
	ParamWaterLevel      Parameter = "water_level"
	ParamFlowRate        Parameter = "flow_rate"
)

// DetectorParameters are the parameters run through change-point detection.
var DetectorParameters = []Parameter{
	ParamTemperature,
	ParamPH,
	ParamDissolvedOxygen,
	ParamAmmonia,
	ParamNitrate,
	ParamTurbidity,
}

// HealthParameters are the parameters scored by the health engine.
var HealthParameters = []Parameter{
	ParamTemperature,
	ParamPH,
	ParamDissolvedOxygen,
	ParamTurbidity,
	ParamAmmonia,
	ParamNitrate,
}

// parameterColumns maps parameters to their sensor_readings columns. Only
// parameters listed here may be interpolated into SQL.
var parameterColumns = map[Parameter]string{
	ParamTemperature:     "temperature",
	ParamPH:              "ph",
	ParamDissolvedOxygen: "dissolved_oxygen",
	ParamTurbidity:       "turbidity",
	ParamAmmonia:         "ammonia",
	ParamNitrate:         "nitrate",
	ParamNitrite:         "nitrite",
	ParamSalinity:        "salinity",
	ParamWaterLevel:      "water_level",
	ParamFlowRate:        "flow_rate",
}

// Column returns the database column for the parameter, or false if the
// parameter is unknown.
func (p Parameter) Column() (string, bool) {
	col, ok := parameterColumns[p]
	return col, ok
}

func (p Parameter) String() string {
	return string(p)
}
