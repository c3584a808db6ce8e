package event

// Unit categorizes value semantics for presentation. It never drives routing.
type Unit string

const (
	Beaufort  Unit = "BEAUFORT"
	Boolean   Unit = "BOOLEAN"
	Celsius   Unit = "CELSIUS"
	Datetime  Unit = "DATETIME"
	Enum      Unit = "ENUM"
	HPa       Unit = "HPA"
	ImageURL  Unit = "IMAGE_URL"
	JPEG      Unit = "JPEG"
	MPS       Unit = "MPS"
	RH        Unit = "RH"
	Text      Unit = "TEXT"
	Timedelta Unit = "TIMEDELTA"
	Watt      Unit = "WATT"
	Percent   Unit = "PERCENT"
)

// IsLogged reports whether values of this unit belong in the log projection.
func (u Unit) IsLogged() bool {
	return u != ImageURL && u != JPEG
}

// IsStored reports whether values of this unit belong in the actual projection.
func (u Unit) IsStored() bool {
	return u != JPEG
}

// IsFloat reports whether values are expected to be numeric.
func (u Unit) IsFloat() bool {
	switch u {
	case Beaufort, Celsius, HPa, MPS, RH, Watt, Timedelta, Percent:
		return true
	}
	return false
}

// Valid reports whether u is one of the known units. The empty unit is valid.
func (u Unit) Valid() bool {
	switch u {
	case "", Beaufort, Boolean, Celsius, Datetime, Enum, HPa, ImageURL, JPEG, MPS, RH, Text, Timedelta, Watt, Percent:
		return true
	}
	return false
}
