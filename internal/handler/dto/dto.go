// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// DataResponse is the success envelope of every API endpoint.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the error body of every API endpoint.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}
