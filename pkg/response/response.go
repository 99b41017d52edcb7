package response

import "backend/pkg/pagination"

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paginated wraps list data with its pagination envelope
func Paginated(data interface{}, total int64, page, limit int) Response {
	return Response{
		Status:     "success",
		StatusCode: 200,
		Data: map[string]interface{}{
			"items":       data,
			"total":       total,
			"page":        page,
			"limit":       limit,
			"total_pages": pagination.TotalPages(total, limit),
		},
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
