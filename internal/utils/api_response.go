package utils

import "time"

type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Total     *int      `json:"total,omitempty"`
	Limit     *int      `json:"limit,omitempty"`
	Offset    *int      `json:"offset,omitempty"`
}

const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidGeometry        = "INVALID_GEOMETRY"
	CodeIncompletePrecondition = "INCOMPLETE_PRECONDITION"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodePredictionFailed       = "PREDICTION_FAILED"
	CodeClassifierFailed       = "CLASSIFIER_FAILED"
	CodeLocationSuperseded     = "LOCATION_SUPERSEDED"
	CodeInternal               = "INTERNAL_ERROR"
)

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}
}

func CreateSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Timestamp: time.Now(),
		},
	}
}

// CreatePageResponse is CreateSuccessResponse with paging metadata.
func CreatePageResponse(data any, total, limit, offset int) SuccessResponse {
	resp := CreateSuccessResponse(data)
	resp.Meta.Total = &total
	resp.Meta.Limit = &limit
	resp.Meta.Offset = &offset
	return resp
}
