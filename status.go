package resolvers

// Status is the externally visible outcome of a Resolution's last completed attempt. It is a
// stable contract: owners switch on it in their OnFailed callback and store it for diagnostics.
type Status int

const (
	StatusNone Status = iota
	StatusValid
	StatusInvalid
	StatusNX
	StatusRefused
	StatusTimeout
	StatusOther
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusValid:
		return "VALID"
	case StatusInvalid:
		return "INVALID"
	case StatusNX:
		return "NX"
	case StatusRefused:
		return "REFUSED"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// UpdateCode is returned by SelectAddress to tell the caller what, if anything, changed.
type UpdateCode int

const (
	UpdNo               UpdateCode = iota // currentIP is still optimal
	UpdNoIPFound                          // no candidate records at all
	UpdSRVIPNotFound                      // caller should adopt the returned IP
)

func (u UpdateCode) String() string {
	switch u {
	case UpdNo:
		return "UPD_NO"
	case UpdNoIPFound:
		return "UPD_NO_IP_FOUND"
	case UpdSRVIPNotFound:
		return "UPD_SRVIP_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// validationCode classifies a raw DNS response prior to it being merged into a Resolution's answer
// set. It is internal: owners only ever see the resulting Status.
type validationCode int

const (
	respValid validationCode = iota
	respInvalid
	respNXDomain
	respRefused
	respError
	respQueryCountError
	respANCountZero
	respTruncated
	respCNAMEError
	respWrongName
	respNoExpectedRecord
	respInternal
)

// Family is the address Family of an AnswerItem or a resolution's preferred query type.
type Family int

const (
	FamilyUnspec Family = iota
	FamilyV4
	FamilyV6
)
