package login

import (
	"errors"
	"fmt"
)

// ErrInvalidOption is returned by New when an option is given a nil value.
var ErrInvalidOption = errors.New("login: invalid option")

// Stage names the step of a login that failed.
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageDiscovery     Stage = "discovery"
	StageAuthorization Stage = "authorization"
	StageTokenExchange Stage = "token_exchange"
	StageIDToken       Stage = "id_token"
)

// StageError reports the stage a login failed in. The cause is available
// through errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("login failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
