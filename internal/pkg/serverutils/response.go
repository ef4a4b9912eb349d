package serverutils

type BaseResponse[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

type ErrorBody struct {
	Success       bool              `json:"success"`
	Code          int               `json:"code"`
	Message       string            `json:"message"`
	Kind          string            `json:"kind,omitempty"`
	CurrentStatus string            `json:"current_status,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

func SuccessResponse[T any](message string, data T) BaseResponse[T] {
	return BaseResponse[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func CreatedResponse[T any](message string, data T) BaseResponse[T] {
	res := SuccessResponse(message, data)
	res.Code = 201
	return res
}

func ErrorResponse(code int, message string) ErrorBody {
	return ErrorBody{
		Success: false,
		Code:    code,
		Message: message,
	}
}
