package domain

import "fmt"

// ControlRequest

type ControlRequest interface {
	ActorRequest
	ControlCommand() string
}

type ControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ControlRequestMixIn) ControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ControlResponse

type ControlResponse interface {
	ActorResponse
	ControlResponse() string
}

type ControlResponseMixIn struct {
	ActorResponseMixIn
}

func (r ControlResponseMixIn) ControlResponse() string {
	return fmt.Sprintf("%T", r)
}

// Control commands

type GetHardwareRequest struct {
	ControlRequestMixIn
}

type GetHardwareResponse struct {
	ControlResponseMixIn
	Root *HardwareView
}

type GetCurvesRequest struct {
	ControlRequestMixIn
}

type GetCurvesResponse struct {
	ControlResponseMixIn
	Curves []CurveSpec
}

// PutCurveRequest replaces the curve of Spec.ControllerID, or adds one.
type PutCurveRequest struct {
	ControlRequestMixIn
	Spec CurveSpec
}

type PutCurveResponse struct {
	ControlResponseMixIn
	Replaced bool
}

type DeleteCurveRequest struct {
	ControlRequestMixIn
	ControllerID string
}

type DeleteCurveResponse struct {
	ControlResponseMixIn
	Removed bool
}

type StoreCurvesRequest struct {
	ControlRequestMixIn
}

type StoreCurvesResponse struct {
	ControlResponseMixIn
}

type LoadCurvesRequest struct {
	ControlRequestMixIn
}

type LoadCurvesResponse struct {
	ControlResponseMixIn
	Count int
}

// ensure interface compliance
var (
	_ ControlRequest  = (*PutCurveRequest)(nil)
	_ ControlResponse = (*PutCurveResponse)(nil)
)
