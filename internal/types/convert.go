package types

// StateAs converts s to the named kind where a sensible conversion
// exists, e.g. a Percent of 60 viewed as OnOff is On. Returns false when
// no conversion applies. Null and Undef never convert.
//
// Supported conversions:
//
//	OnOff      <- Percent (0 is Off), Decimal (0 is Off)
//	Percent    <- OnOff (On is 100), UpDown (Down is 100), Decimal in [0,100]
//	Decimal    <- Percent, OnOff (On is 1), OpenClosed (Open is 1), UpDown (Down is 1)
//	UpDown     <- Percent (only 0 and 100)
//	OpenClosed <- Decimal (only 0 and 1)
func StateAs(s State, kind string) (State, bool) {
	if s == nil {
		return nil, false
	}
	if s.Kind() == kind {
		return s, true
	}
	switch kind {
	case "OnOff":
		switch v := s.(type) {
		case Percent:
			return OnOff(v > 0), true
		case Decimal:
			return OnOff(v != 0), true
		}
	case "Percent":
		switch v := s.(type) {
		case OnOff:
			if v == On {
				return Percent(100), true
			}
			return Percent(0), true
		case UpDown:
			if v == Down {
				return Percent(100), true
			}
			return Percent(0), true
		case Decimal:
			if v >= 0 && v <= 100 {
				return Percent(v), true
			}
		}
	case "Decimal":
		switch v := s.(type) {
		case Percent:
			return Decimal(v), true
		case OnOff:
			if v == On {
				return Decimal(1), true
			}
			return Decimal(0), true
		case OpenClosed:
			if v == Open {
				return Decimal(1), true
			}
			return Decimal(0), true
		case UpDown:
			if v == Down {
				return Decimal(1), true
			}
			return Decimal(0), true
		}
	case "UpDown":
		if v, ok := s.(Percent); ok {
			switch v {
			case 0:
				return Up, true
			case 100:
				return Down, true
			}
		}
	case "OpenClosed":
		if v, ok := s.(Decimal); ok {
			switch v {
			case 0:
				return Closed, true
			case 1:
				return Open, true
			}
		}
	}
	return nil, false
}
