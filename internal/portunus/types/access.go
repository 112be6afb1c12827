package types

import "time"

// ErrorKind names the guard that denied a decision.  The values are part of
// the checkpoint wire contract and must not be renamed.
type ErrorKind string

const (
	UsuarioNoExiste      ErrorKind = "UsuarioNoExiste"
	UsuarioInvalido      ErrorKind = "UsuarioInvalido"
	EspacioNoExiste      ErrorKind = "EspacioNoExiste"
	EspacioInactivo      ErrorKind = "EspacioInactivo"
	ReglasNoConfiguradas ErrorKind = "ReglasNoConfiguradas"
	FueraDeVigencia      ErrorKind = "FueraDeVigencia"
	FueraDeHorario       ErrorKind = "FueraDeHorario"
	RolNoPermitido       ErrorKind = "RolNoPermitido"
)

// Reason returns the human-readable message sent alongside a denial.
func (k ErrorKind) Reason() string {
	switch k {
	case UsuarioNoExiste:
		return "user does not exist"
	case UsuarioInvalido:
		return "user credential is not valid"
	case EspacioNoExiste:
		return "space does not exist"
	case EspacioInactivo:
		return "space is inactive"
	case ReglasNoConfiguradas:
		return "no access rules configured for space"
	case FueraDeVigencia:
		return "outside the rule validity period"
	case FueraDeHorario:
		return "outside opening hours"
	case RolNoPermitido:
		return "role not allowed in space"
	default:
		return ""
	}
}

// Outcome is the persisted result of a decision.
type Outcome string

const (
	Permitted Outcome = "Permitted"
	Denied    Outcome = "Denied"
)

type DecisionRequest struct {
	UserID       int64  `json:"userId" validate:"gt=0"`
	SpaceID      int64  `json:"spaceId" validate:"gt=0"`
	CheckpointID string `json:"checkpointId" validate:"required,max=128"`
}

// DecisionResult is the tagged outcome of Decide.  ErrorKind, Reason and
// Details are empty when Permitted is true.
type DecisionResult struct {
	DecisionID string
	Permitted  bool
	ErrorKind  ErrorKind
	Reason     string
	Details    map[string]any
	Timestamp  time.Time
}

func (r DecisionResult) Outcome() Outcome {
	if r.Permitted {
		return Permitted
	}
	return Denied
}

type DecisionResponse struct {
	DecisionID string         `json:"decisionId"`
	Permitted  bool           `json:"permitted"`
	ErrorKind  ErrorKind      `json:"errorKind,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

func NewDecisionResponse(r DecisionResult) DecisionResponse {
	return DecisionResponse{
		DecisionID: r.DecisionID,
		Permitted:  r.Permitted,
		ErrorKind:  r.ErrorKind,
		Reason:     r.Reason,
		Details:    r.Details,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

type Redemption struct {
	EventID    string    `json:"eventId"`
	UserID     int64     `json:"userId"`
	BenefitID  int64     `json:"benefitId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}
